package lode

import (
	"context"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/scriptrun/types"
)

// LodeClient is the Lode-backed Client, partitioned by
// project/day/build_id/record_kind.
type LodeClient struct {
	dataset lode.Dataset
	config  Config
	now     func() time.Time

	mu sync.Mutex // serializes dataset writes

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error
}

// NewLodeClient creates a client over filesystem storage rooted at root.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a client with a custom store factory.
// Use lode.NewMemoryFactory() in tests.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return newClient(ds, cfg, factory), nil
}

func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *LodeClient {
	return &LodeClient{
		dataset:      ds,
		config:       cfg,
		now:          time.Now,
		storeFactory: factory,
	}
}

func newDataset(id string, factory lode.StoreFactory) (lode.Dataset, error) {
	if id == "" {
		id = DefaultDataset
	}
	return lode.NewDataset(
		lode.DatasetID(id),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// WriteLines writes a batch of line records as one snapshot.
func (c *LodeClient) WriteLines(ctx context.Context, lines []*types.OutputLine) error {
	if len(lines) == 0 {
		return nil
	}
	now := c.now()
	records := make([]any, 0, len(lines))
	for _, l := range lines {
		records = append(records, toLineRecordMap(l, c.config, now))
	}
	return c.write(ctx, records, RecordKindLine)
}

// WriteResult writes the step result record.
func (c *LodeClient) WriteResult(ctx context.Context, result *types.StepResult) error {
	if result == nil {
		return nil
	}
	return c.write(ctx, []any{toResultRecordMap(result, c.config)}, RecordKindResult)
}

func (c *LodeClient) write(ctx context.Context, records []any, kind string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.config.BuildID+"/"+kind)
	}
	return nil
}

// Close releases client resources. Datasets need no explicit close.
func (c *LodeClient) Close() error {
	return nil
}

var _ Client = (*LodeClient)(nil)
