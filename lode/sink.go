// Package lode archives captured step output and step results in a Lode
// dataset.
package lode

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/scriptrun/policy"
	"github.com/pithecene-io/scriptrun/types"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "scriptrun"

// DeriveDay computes the partition day (YYYY-MM-DD, UTC) from the step
// start time.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds the partition keys of one step's records.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Project partitions records by project.
	Project string
	// Day is derived from the step start time.
	Day string
	// BuildID partitions records by build.
	BuildID string
	// TaskID and StepID are stored on every record.
	TaskID string
	StepID string
	// Policy names the archive policy in use.
	Policy string
}

// Client abstracts the Lode storage client.
type Client interface {
	// WriteLines writes a batch of lines, preserving order.
	WriteLines(ctx context.Context, lines []*types.OutputLine) error

	// WriteResult writes the step result record.
	WriteResult(ctx context.Context, result *types.StepResult) error

	// Close releases client resources.
	Close() error
}

// Sink adapts a Client to policy.Sink.
type Sink struct {
	config Config
	client Client
}

// NewSink creates a Lode sink.
func NewSink(config Config, client Client) *Sink {
	return &Sink{config: config, client: client}
}

// WriteLines implements policy.Sink.
func (s *Sink) WriteLines(ctx context.Context, lines []*types.OutputLine) error {
	return s.client.WriteLines(ctx, lines)
}

// WriteResult implements policy.Sink.
func (s *Sink) WriteResult(ctx context.Context, result *types.StepResult) error {
	return s.client.WriteResult(ctx, result)
}

// PutFile stores a sidecar file when the client supports it.
func (s *Sink) PutFile(ctx context.Context, filename, contentType string, data []byte) error {
	fw, ok := s.client.(FileWriter)
	if !ok {
		return nil
	}
	return fw.PutFile(ctx, filename, contentType, data)
}

// Close implements policy.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}

var (
	_ policy.Sink = (*Sink)(nil)
	_ FileWriter  = (*Sink)(nil)
)

// StubClient is a test client that keeps writes in memory.
type StubClient struct {
	mu      sync.Mutex
	Lines   [][]*types.OutputLine
	Results []*types.StepResult
	Closed  bool
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteLines implements Client.
func (c *StubClient) WriteLines(_ context.Context, lines []*types.OutputLine) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Lines = append(c.Lines, lines)
	return nil
}

// WriteResult implements Client.
func (c *StubClient) WriteResult(_ context.Context, result *types.StepResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Results = append(c.Results, result)
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

var _ Client = (*StubClient)(nil)
