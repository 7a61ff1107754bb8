package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is a scriptrun.yaml file. Every value is optional and acts as
// a default for `scriptrun run`; flags always win.
type Config struct {
	Shell   string `yaml:"shell"`
	Charset string `yaml:"charset"`
	Prefix  string `yaml:"prefix"`
	// Secrets names variables whose values are masked in output.
	Secrets []string `yaml:"secrets"`

	Runtime RuntimeConfig `yaml:"runtime"`
	Quality QualityConfig `yaml:"quality"`
	Storage StorageConfig `yaml:"storage"`
	Policy  PolicyConfig  `yaml:"policy"`
	Adapter AdapterConfig `yaml:"adapter"`
}

// RuntimeConfig sizes the worker pool and the output pipeline.
type RuntimeConfig struct {
	PoolMin            int      `yaml:"pool_min"`
	PoolMax            int      `yaml:"pool_max"`
	KeepAlive          Duration `yaml:"keep_alive"`
	AdjustInterval     Duration `yaml:"adjust_interval"`
	BacklogFactor      int      `yaml:"backlog_factor"`
	DrainTimeout       Duration `yaml:"drain_timeout"`
	FailOnDrainTimeout bool     `yaml:"fail_on_drain_timeout"`
	ShutdownTimeout    Duration `yaml:"shutdown_timeout"`
	ErrorTail          int      `yaml:"error_tail"`
	CaptureOutput      bool     `yaml:"capture_output"`
	ContinueOnError    bool     `yaml:"continue_on_error"`
}

// QualityConfig points at the quality gate service.
type QualityConfig struct {
	URL         string            `yaml:"url"`
	ElementType string            `yaml:"element_type"`
	Timeout     Duration          `yaml:"timeout"`
	Retries     *int              `yaml:"retries,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
}

// StorageConfig holds archive storage defaults.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// PolicyConfig holds archive policy defaults.
type PolicyConfig struct {
	Name          string   `yaml:"name"`
	FlushCount    int      `yaml:"flush_count"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// AdapterConfig holds completion event adapter defaults.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("negative duration %q", s)
	}
	d.Duration = parsed
	return nil
}

// Validate rejects enum values no component understands. Empty values
// are always valid.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case "", "fs", "s3":
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unsupported %q (want fs or s3)", c.Storage.Backend))
	}
	switch c.Policy.Name {
	case "", "strict", "streaming", "noop":
	default:
		errs = append(errs, fmt.Errorf("policy.name: unsupported %q (want strict, streaming or noop)", c.Policy.Name))
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		errs = append(errs, fmt.Errorf("adapter.type: unsupported %q (want webhook or redis)", c.Adapter.Type))
	}
	if c.Runtime.PoolMin < 0 || c.Runtime.PoolMax < 0 {
		errs = append(errs, errors.New("runtime: pool sizes must be >= 0"))
	}
	if c.Runtime.PoolMax > 0 && c.Runtime.PoolMin > c.Runtime.PoolMax {
		errs = append(errs, fmt.Errorf("runtime: pool_min %d exceeds pool_max %d", c.Runtime.PoolMin, c.Runtime.PoolMax))
	}
	return errors.Join(errs...)
}
