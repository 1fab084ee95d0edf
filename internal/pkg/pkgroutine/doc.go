// Package pkgroutine contains helpers for running goroutines safely.
//
// The Manager type limits concurrency, collects returned errors, and turns
// panics into ErrPanic so that background work such as ingestion jobs does
// not crash the process silently.
package pkgroutine
