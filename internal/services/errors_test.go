package services

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapPreservesMarker(t *testing.T) {
	err := Wrap(ErrAlignment, "tts", "normalize", "word count mismatch", nil)
	if !errors.Is(err, ErrAlignment) {
		t.Fatalf("expected alignment marker, got %v", err)
	}
	if errors.Is(err, ErrComposition) {
		t.Error("wrong marker matched")
	}
}

func TestWrapDefaultsToUpstream(t *testing.T) {
	err := Wrap(nil, "tts", "synthesize", "boom", nil)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected upstream default, got %v", err)
	}
}

func TestWrapChainsCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrUpstream, "broll", "search", "request failed", cause)
	if !errors.Is(err, cause) {
		t.Error("cause not preserved in chain")
	}
}

func TestMarkTransient(t *testing.T) {
	base := Wrap(ErrUpstream, "tts", "synthesize", "503", nil)
	if IsTransient(base) {
		t.Error("unmarked error must not be transient")
	}

	marked := MarkTransient(base)
	if !IsTransient(marked) {
		t.Error("marked error must be transient")
	}
	if !errors.Is(marked, ErrUpstream) {
		t.Error("marker lost through transient wrapper")
	}

	if MarkTransient(nil) != nil {
		t.Error("nil must stay nil")
	}
}

func TestTransientSurvivesFurtherWrapping(t *testing.T) {
	inner := MarkTransient(Wrap(ErrUpstream, "tts", "synthesize", "timeout", nil))
	outer := fmt.Errorf("stage failed: %w", inner)
	if !IsTransient(outer) {
		t.Error("transient marker should survive wrapping")
	}
}
