// Package metrics provides per-step metrics collection.
//
// The Collector accumulates counters during a single step invocation. It is
// a leaf package with no internal dependencies. Archive policy counters are
// absorbed from policy.Stats at step completion rather than recorded live.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all step metrics.
type Snapshot struct {
	// Step lifecycle
	StepsStarted   int64 `json:"steps_started"`
	StepsSucceeded int64 `json:"steps_succeeded"`
	StepsFailed    int64 `json:"steps_failed"`
	StepsErrored   int64 `json:"steps_errored"`

	// Child process
	SpawnSuccess int64 `json:"spawn_success"`
	SpawnFailure int64 `json:"spawn_failure"`

	// Pipeline
	StdoutLines          int64            `json:"stdout_lines"`
	StderrLines          int64            `json:"stderr_lines"`
	MarkersByKind        map[string]int64 `json:"markers_by_kind,omitempty"`
	ScratchWriteFailures int64            `json:"scratch_write_failures"`
	PoolExpansions       int64            `json:"pool_expansions"`
	PoolRejections       int64            `json:"pool_rejections"`
	DrainTimeouts        int64            `json:"drain_timeouts"`

	// Quality gate
	QualityReported int64 `json:"quality_reported"`
	QualityFailures int64 `json:"quality_failures"`

	// Archive (absorbed from policy.Stats at step completion)
	LinesReceived  int64            `json:"lines_received"`
	LinesPersisted int64            `json:"lines_persisted"`
	FlushTriggers  map[string]int64 `json:"flush_triggers,omitempty"`

	// Lode / Storage
	LodeWriteSuccess int64 `json:"lode_write_success"`
	LodeWriteFailure int64 `json:"lode_write_failure"`

	// Completion events
	AdapterPublishFailures int64 `json:"adapter_publish_failures"`

	// Dimensions (informational, set at construction)
	Shell          string `json:"shell"`
	Policy         string `json:"policy"`
	StorageBackend string `json:"storage_backend"`
	BuildID        string `json:"build_id"`
}

// Collector accumulates metrics during a single step.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex
	s  Snapshot
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(shell, policy, storageBackend, buildID string) *Collector {
	return &Collector{s: Snapshot{
		MarkersByKind:  make(map[string]int64),
		Shell:          shell,
		Policy:         policy,
		StorageBackend: storageBackend,
		BuildID:        buildID,
	}}
}

func (c *Collector) add(field func(*Snapshot) *int64, n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	*field(&c.s) += n
	c.mu.Unlock()
}

// --- Step lifecycle ---

// IncStepStarted records a step start.
func (c *Collector) IncStepStarted() { c.add(func(s *Snapshot) *int64 { return &s.StepsStarted }, 1) }

// IncStepSucceeded records a successful step.
func (c *Collector) IncStepSucceeded() { c.add(func(s *Snapshot) *int64 { return &s.StepsSucceeded }, 1) }

// IncStepFailed records a user-attributable failure.
func (c *Collector) IncStepFailed() { c.add(func(s *Snapshot) *int64 { return &s.StepsFailed }, 1) }

// IncStepErrored records an unexpected plugin error.
func (c *Collector) IncStepErrored() { c.add(func(s *Snapshot) *int64 { return &s.StepsErrored }, 1) }

// --- Child process ---

// IncSpawnSuccess records a successful child start.
func (c *Collector) IncSpawnSuccess() { c.add(func(s *Snapshot) *int64 { return &s.SpawnSuccess }, 1) }

// IncSpawnFailure records a failed child start.
func (c *Collector) IncSpawnFailure() { c.add(func(s *Snapshot) *int64 { return &s.SpawnFailure }, 1) }

// --- Pipeline ---

// IncLine records one drained line for the named stream ("stdout" or "stderr").
func (c *Collector) IncLine(stream string) {
	if stream == "stderr" {
		c.add(func(s *Snapshot) *int64 { return &s.StderrLines }, 1)
		return
	}
	c.add(func(s *Snapshot) *int64 { return &s.StdoutLines }, 1)
}

// IncMarker records a recognised marker of the given kind.
func (c *Collector) IncMarker(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s.MarkersByKind[kind]++
	c.mu.Unlock()
}

// IncScratchWriteFailure records a failed scratch append.
func (c *Collector) IncScratchWriteFailure() {
	c.add(func(s *Snapshot) *int64 { return &s.ScratchWriteFailures }, 1)
}

// IncPoolExpansion records an extra process task submitted by the adjuster.
func (c *Collector) IncPoolExpansion() { c.add(func(s *Snapshot) *int64 { return &s.PoolExpansions }, 1) }

// IncPoolRejection records a submission rejected by a saturated pool.
func (c *Collector) IncPoolRejection() { c.add(func(s *Snapshot) *int64 { return &s.PoolRejections }, 1) }

// IncDrainTimeout records a drain that gave up before the queues emptied.
func (c *Collector) IncDrainTimeout() { c.add(func(s *Snapshot) *int64 { return &s.DrainTimeouts }, 1) }

// --- Quality gate ---

// IncQualityReported records a quality gate report accepted by the service.
func (c *Collector) IncQualityReported() {
	c.add(func(s *Snapshot) *int64 { return &s.QualityReported }, 1)
}

// IncQualityFailure records a quality gate report that failed.
func (c *Collector) IncQualityFailure() {
	c.add(func(s *Snapshot) *int64 { return &s.QualityFailures }, 1)
}

// --- Lode / Storage ---
// Lode counters are per-call, not per-record.

// IncLodeWriteSuccess records a successful Lode write operation.
func (c *Collector) IncLodeWriteSuccess() {
	c.add(func(s *Snapshot) *int64 { return &s.LodeWriteSuccess }, 1)
}

// IncLodeWriteFailure records a failed Lode write operation.
func (c *Collector) IncLodeWriteFailure() {
	c.add(func(s *Snapshot) *int64 { return &s.LodeWriteFailure }, 1)
}

// --- Completion events ---

// IncAdapterPublishFailure records a completion event that was not delivered.
func (c *Collector) IncAdapterPublishFailure() {
	c.add(func(s *Snapshot) *int64 { return &s.AdapterPublishFailures }, 1)
}

// --- Archive (absorbed from policy.Stats) ---

// AbsorbPolicyStats copies archive counters from policy.Stats into the collector.
// Called once after the step with the final policy stats snapshot.
func (c *Collector) AbsorbPolicyStats(received, persisted int64, flushTriggers map[string]int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s.LinesReceived = received
	c.s.LinesPersisted = persisted
	c.s.FlushTriggers = copyMap(flushTriggers)
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.s
	s.MarkersByKind = copyMap(c.s.MarkersByKind)
	s.FlushTriggers = copyMap(c.s.FlushTriggers)
	if s.MarkersByKind == nil {
		s.MarkersByKind = map[string]int64{}
	}
	return s
}

func copyMap(m map[string]int64) map[string]int64 {
	if m == nil {
		return nil
	}
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
