// Package tts integrates a speech-synthesis provider that returns narration
// audio together with per-word timing offsets.
package tts
