// Package broll selects and fetches background footage that covers a
// narration's duration.
package broll
