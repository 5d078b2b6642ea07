// Package archive keeps raw gateway webhook bodies for audit and replay.
package archive

import (
	"context"
	"time"
)

// Record is one webhook delivery as received on the wire.
type Record struct {
	RequestID      string
	Event          string
	SignatureValid bool
	Body           []byte
	ReceivedAt     time.Time
}

// Archiver stores webhook records.
type Archiver interface {
	Archive(ctx context.Context, rec Record) error
}

type noopArchiver struct{}

// NewNoopArchiver returns an Archiver that discards records.
func NewNoopArchiver() Archiver {
	return noopArchiver{}
}

func (noopArchiver) Archive(context.Context, Record) error { return nil }
