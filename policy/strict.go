package policy

import (
	"context"

	"github.com/pithecene-io/scriptrun/types"
)

// StrictPolicy writes every line through to the sink as it arrives.
// The S stage waits on sink latency.
type StrictPolicy struct {
	sink  Sink
	stats statsRecorder
}

// NewStrictPolicy creates a strict policy writing to sink.
func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{sink: sink}
}

// IngestLine writes the line as a batch of one.
func (p *StrictPolicy) IngestLine(ctx context.Context, line *types.OutputLine) error {
	p.stats.incTotalLines()
	if err := p.sink.WriteLines(ctx, []*types.OutputLine{line}); err != nil {
		p.stats.incErrors()
		return err
	}
	p.stats.incLinesPersisted(1)
	return nil
}

// Flush has nothing to write.
func (p *StrictPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close closes the sink.
func (p *StrictPolicy) Close() error {
	return p.sink.Close()
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*StrictPolicy)(nil)
