// Package captions groups word spans into karaoke cues and renders them as an
// ASS subtitle track with per-word highlighting.
package captions
