// Package csvstream decodes uploaded CSV files into header-keyed records one
// row at a time.
//
// A Reader consumes its source once; scanning a file twice means opening it
// twice. Rows with more or fewer cells than the header are accepted, blank
// lines are skipped, and malformed input stops the scan with a *ParseError.
package csvstream
