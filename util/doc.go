// Package util provides small helpers shared across packages: pointer
// constructors for optional config fields and free-text input sanitization.
package util
