// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ReverseWindow computes the [offset, offset+limit) slice for reverse
// pagination over a list kept in ascending order: page 1 is always the most
// recent pageSize items, page 2 the pageSize before those, and so on.
//
// Requesting a page beyond the available range clamps to the last page, so
// the oldest items remain reachable. A zero total yields an empty window.
func ReverseWindow(total int64, page, pageSize int) (offset, limit int) {
	if total <= 0 || pageSize <= 0 {
		return 0, 0
	}
	if page < 1 {
		page = 1
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if page > totalPages {
		page = totalPages
	}
	off := total - int64(page)*int64(pageSize)
	if off < 0 {
		off = 0
	}
	end := total - int64(page-1)*int64(pageSize)
	return int(off), int(end - off)
}

// TotalPages returns the page count for a total and page size.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
