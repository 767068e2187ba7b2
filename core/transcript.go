package core

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"
)

type transcriptContextKey struct{}

// TranscriptBuffer collects the wire log of one operation. Transports append to
// the buffer found in the request context.
type TranscriptBuffer struct {
	mu      sync.Mutex
	builder strings.Builder
}

func ContextWithTranscript(ctx context.Context) (context.Context, *TranscriptBuffer) {
	if ctx == nil {
		ctx = context.Background()
	}
	buffer := &TranscriptBuffer{}
	return context.WithValue(ctx, transcriptContextKey{}, buffer), buffer
}

func TranscriptFromContext(ctx context.Context) (*TranscriptBuffer, bool) {
	if ctx == nil {
		return nil, false
	}
	buffer, ok := ctx.Value(transcriptContextKey{}).(*TranscriptBuffer)
	return buffer, ok && buffer != nil
}

func (b *TranscriptBuffer) WriteString(value string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.builder.WriteString(value)
	b.mu.Unlock()
}

func (b *TranscriptBuffer) String() string {
	if b == nil {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.builder.String()
}

// truncateTranscript keeps at most maxBytes, backing off to a rune boundary so
// the stored transcript stays valid UTF-8.
func truncateTranscript(value string, maxBytes int) string {
	if maxBytes <= 0 || len(value) <= maxBytes {
		return value
	}
	for maxBytes > 0 && !utf8.RuneStart(value[maxBytes]) {
		maxBytes--
	}
	return value[:maxBytes]
}
