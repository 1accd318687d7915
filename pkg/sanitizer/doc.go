// Package sanitizer provides input normalization functions for flight data.
//
// All normalization functions are idempotent - applying them multiple times produces
// the same result. Functions handle invalid input gracefully, typically by returning
// empty strings or empty slices rather than errors.
//
// Normalization includes:
//   - Strings: Collapse whitespace, trim leading/trailing spaces
//   - Codes: Remove all whitespace and uppercase - " jfk " becomes "JFK", "ua 100" becomes "UA100"
//   - Slices: Remove duplicates and empty values after normalization, preserving order
package sanitizer
