// Package pkgerror defines shared error types and sentinel errors used across
// the application.
//
// It helps keep error handling consistent by:
//   - Providing sentinel errors that can be checked with errors.Is.
//   - Providing a structured Error type that carries a message, type, and code,
//     which can be mapped to HTTP status codes at the edge (handlers).
//
// Errors raised inside background ingestion jobs never pass through here; they
// are recorded on the job and observed by polling or the progress stream.
package pkgerror
