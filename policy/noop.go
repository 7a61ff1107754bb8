package policy

import (
	"context"

	"github.com/pithecene-io/scriptrun/types"
)

// NoopPolicy counts lines without archiving them. It is used when no
// storage is configured.
type NoopPolicy struct {
	stats statsRecorder
}

// NewNoopPolicy creates a no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{}
}

// IngestLine counts the line.
func (p *NoopPolicy) IngestLine(_ context.Context, _ *types.OutputLine) error {
	p.stats.incTotalLines()
	return nil
}

// Flush counts the flush.
func (p *NoopPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close is a no-op.
func (p *NoopPolicy) Close() error {
	return nil
}

// Stats returns the policy statistics.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*NoopPolicy)(nil)
