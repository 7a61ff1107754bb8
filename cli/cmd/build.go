package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/pithecene-io/scriptrun/adapter"
	"github.com/pithecene-io/scriptrun/adapter/redis"
	"github.com/pithecene-io/scriptrun/adapter/webhook"
	"github.com/pithecene-io/scriptrun/cli/config"
	"github.com/pithecene-io/scriptrun/lode"
	"github.com/pithecene-io/scriptrun/log"
	"github.com/pithecene-io/scriptrun/metrics"
	"github.com/pithecene-io/scriptrun/policy"
	"github.com/pithecene-io/scriptrun/quality"
)

// archive is the capture archive of one step: the line policy and the
// sink that also stores the result record and sidecars.
type archive struct {
	policy policy.Policy
	sink   policy.Sink
	path   string
}

// Close closes the policy and, when the policy does not own it, the sink.
func (a *archive) Close() error {
	if a == nil || a.policy == nil {
		return nil
	}
	err := a.policy.Close()
	if _, noop := a.policy.(*policy.NoopPolicy); noop && a.sink != nil {
		err = errors.Join(err, a.sink.Close())
	}
	return err
}

// policyName returns the effective policy: noop without storage, strict
// by default.
func policyName(st config.StorageConfig, pc config.PolicyConfig) string {
	if st.Path == "" {
		return "noop"
	}
	if pc.Name == "" {
		return "strict"
	}
	return pc.Name
}

// backendName returns the storage backend dimension.
func backendName(st config.StorageConfig) string {
	switch {
	case st.Path == "":
		return "none"
	case st.Backend == "":
		return "fs"
	default:
		return st.Backend
	}
}

// buildArchive opens the lode client for st and wraps it in the policy.
// Without a storage path the archive is a noop policy with no sink.
func buildArchive(ctx context.Context, st config.StorageConfig, pc config.PolicyConfig, lcfg lode.Config, collector *metrics.Collector, logger *log.Logger) (*archive, error) {
	if st.Path == "" {
		return &archive{policy: policy.NewNoopPolicy()}, nil
	}
	if st.Dataset != "" {
		lcfg.Dataset = st.Dataset
	}
	if lcfg.Dataset == "" {
		lcfg.Dataset = lode.DefaultDataset
	}
	lcfg.Policy = policyName(st, pc)

	var (
		client lode.Client
		path   string
		err    error
	)
	switch backendName(st) {
	case "fs":
		client, err = lode.NewLodeClient(lcfg, st.Path)
		path = filepath.Join(st.Path, lcfg.Dataset)
	case "s3":
		bucket, prefix := lode.ParseS3Path(st.Path)
		client, err = lode.NewLodeS3Client(ctx, lcfg, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       st.Region,
			Endpoint:     st.Endpoint,
			UsePathStyle: st.S3PathStyle,
		})
		path = "s3://" + st.Path
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (must be fs or s3)", st.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create lode client: %w", err)
	}

	sink := lode.NewInstrumentedSink(lode.NewSink(lcfg, client), collector)
	a := &archive{sink: sink, path: path}

	switch lcfg.Policy {
	case "strict":
		a.policy = policy.NewStrictPolicy(sink)
	case "streaming":
		a.policy, err = policy.NewStreamingPolicy(sink, policy.StreamingConfig{
			FlushCount:    pc.FlushCount,
			FlushInterval: pc.FlushInterval.Duration,
			Logger:        logger,
		})
		if err != nil {
			_ = sink.Close()
			return nil, err
		}
	case "noop":
		// Lines are not archived; the result record still is.
		a.policy = policy.NewNoopPolicy()
	default:
		_ = sink.Close()
		return nil, fmt.Errorf("unknown policy: %s (must be strict, streaming or noop)", lcfg.Policy)
	}
	return a, nil
}

// buildAdapter returns the completion event adapter, or nil when none
// is configured.
func buildAdapter(ac config.AdapterConfig) (adapter.Adapter, error) {
	retries := func(def int) int {
		if ac.Retries == nil {
			return def
		}
		return *ac.Retries
	}
	switch ac.Type {
	case "":
		return nil, nil
	case "webhook":
		a, err := webhook.New(webhook.Config{
			URL:     ac.URL,
			Headers: ac.Headers,
			Timeout: ac.Timeout.Duration,
			Retries: retries(webhook.DefaultRetries),
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	case "redis":
		a, err := redis.New(redis.Config{
			URL:     ac.URL,
			Channel: ac.Channel,
			Timeout: ac.Timeout.Duration,
			Retries: retries(redis.DefaultRetries),
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown adapter type: %s (must be webhook or redis)", ac.Type)
	}
}

// buildQuality returns a reporter bound to the quality service, or nil
// when no URL is configured.
func buildQuality(qc config.QualityConfig, logger *log.Logger, collector *metrics.Collector) (*quality.Reporter, error) {
	if qc.URL == "" {
		return nil, nil
	}
	retries := -1
	if qc.Retries != nil {
		retries = *qc.Retries
	}
	client, err := quality.NewClient(quality.Config{
		URL:         qc.URL,
		ElementType: qc.ElementType,
		Timeout:     qc.Timeout.Duration,
		Retries:     retries,
		Headers:     qc.Headers,
	})
	if err != nil {
		return nil, err
	}
	return quality.NewReporter(client, logger, collector), nil
}
