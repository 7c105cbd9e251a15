// Package compose renders the final vertical video with ffmpeg: normalized
// b-roll looped under the narration, burned-in captions, and optional
// background music.
package compose
