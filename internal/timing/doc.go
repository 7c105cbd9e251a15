// Package timing converts provider word timings into the canonical,
// non-overlapping millisecond word spans the rest of the pipeline consumes.
package timing
