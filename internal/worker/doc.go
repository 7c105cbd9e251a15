// Package worker runs the video assembly pipeline: it claims queued jobs,
// drives them through synthesis, footage selection, captioning, and
// composition, and records the terminal outcome.
package worker
