package tracer

import (
	"crypto/rand"
	"encoding/hex"
)

// newTraceID returns a fresh 128-bit trace id as 32 lowercase hex chars.
func newTraceID() string {
	var b [16]byte

	_, _ = rand.Read(b[:])

	return hex.EncodeToString(b[:])
}

// newSpanID returns a fresh 64-bit span id as 16 lowercase hex chars.
func newSpanID() string {
	var b [8]byte

	_, _ = rand.Read(b[:])

	return hex.EncodeToString(b[:])
}
