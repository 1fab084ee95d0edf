// Package pkguid provides helpers for generating unique identifiers.
//
// The codebase uses these interfaces to avoid hard-coding a specific UID
// strategy:
//   - UUIDs for correlation IDs, dataset rows and staged upload files.
//   - Snowflake IDs, numeric or as strings, for upload jobs, so a job ID
//     also encodes when the upload was submitted.
package pkguid
