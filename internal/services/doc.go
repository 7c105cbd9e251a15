// Package services defines the shared error taxonomy for pipeline stages and
// the bounded retry policy applied to transient provider failures.
package services
