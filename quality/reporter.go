package quality

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pithecene-io/scriptrun/iox"
	"github.com/pithecene-io/scriptrun/log"
	"github.com/pithecene-io/scriptrun/marker"
	"github.com/pithecene-io/scriptrun/metrics"
	"github.com/pithecene-io/scriptrun/scratch"
	"github.com/pithecene-io/scriptrun/types"
)

var (
	// ErrTooManyGroups is returned for a gateway line with more than a
	// value group and a title group.
	ErrTooManyGroups = errors.New("much gateway parameter")
	// ErrInvalidValue is returned for a gateway group without '=' or with
	// a value that is not INT, FLOAT or BOOLEAN.
	ErrInvalidValue = errors.New("invalid gateway value")
)

// Identity names the build the gate values belong to.
type Identity struct {
	ProjectID string
	UserID    string
	TaskID    string
	TaskName  string
}

// Reporter publishes the workspace gateway file.
type Reporter struct {
	api     API
	logger  *log.Logger
	metrics *metrics.Collector
}

// NewReporter creates a reporter. A nil api makes Report only discard
// the gateway file.
func NewReporter(api API, logger *log.Logger, collector *metrics.Collector) *Reporter {
	if logger == nil {
		logger = log.Nop()
	}
	return &Reporter{api: api, logger: logger, metrics: collector}
}

// Report reads the gateway file in dir, upserts indicators and saves the
// values. Failures are logged and counted, never returned. The gateway
// file is always removed.
func (r *Reporter) Report(ctx context.Context, dir string, id Identity) {
	path := filepath.Join(dir, scratch.GatewayFile)
	unlock, err := scratch.LockGateway(dir)
	if err != nil {
		r.metrics.IncQualityFailure()
		r.logger.Warn("gateway lock failed", map[string]any{"error": err.Error()})
		r.removeGateway(path)
		return
	}
	defer iox.DiscardErr(unlock)

	if _, err := os.Stat(path); err != nil {
		return
	}
	defer r.removeGateway(path)
	if r.api == nil {
		return
	}

	if err := r.report(ctx, path, id); err != nil {
		r.metrics.IncQualityFailure()
		r.logger.Warn("save gateway value failed", map[string]any{"error": err.Error()})
		return
	}
	r.metrics.IncQualityReported()
}

func (r *Reporter) removeGateway(path string) {
	if err := iox.RemoveIfExists(path); err != nil {
		r.logger.Warn("gateway file not removed", map[string]any{"error": err.Error()})
	}
}

func (r *Reporter) report(ctx context.Context, path string, id Identity) error {
	lines, err := scratch.ReadLines(path, types.CharsetUTF8)
	if err != nil {
		return err
	}
	data, titles, err := ParseGateway(lines)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	indicators, err := Indicators(data, titles)
	if err != nil {
		return err
	}

	ok, err := r.api.UpsertIndicator(ctx, id.UserID, id.ProjectID, indicators)
	if err != nil {
		return err
	}
	if !ok {
		return ErrIndicatorRejected
	}
	ok, err = r.api.SaveMetadata(ctx, id.TaskID, id.TaskName, data)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMetadataRejected
	}
	r.logger.Info("saved gateway values", map[string]any{"count": len(data)})
	return nil
}

// ParseGateway splits gateway records of the form "name=value[,name=title]"
// into value and title maps. Later records win.
func ParseGateway(lines []string) (data, titles map[string]string, err error) {
	data = map[string]string{}
	titles = map[string]string{}
	for _, l := range lines {
		groups := strings.Split(l, ",")
		if len(groups) > 2 {
			return nil, nil, fmt.Errorf("%w,count:%d", ErrTooManyGroups, len(groups))
		}
		if err := insertGroup(groups[0], data); err != nil {
			return nil, nil, err
		}
		if len(groups) == 2 {
			if err := insertGroup(groups[1], titles); err != nil {
				return nil, nil, err
			}
		}
	}
	return data, titles, nil
}

func insertGroup(group string, into map[string]string) error {
	if strings.TrimSpace(group) == "" {
		return nil
	}
	parts := strings.Split(group, "=")
	if len(parts) < 2 {
		return fmt.Errorf("%w: Illegal gateway key set: %s", ErrInvalidValue, group)
	}
	into[parts[0]] = strings.TrimSpace(parts[1])
	return nil
}

// Indicators builds one indicator per value, sorted by name. The title
// defaults to the name.
func Indicators(data, titles map[string]string) ([]Indicator, error) {
	out := make([]Indicator, 0, len(data))
	for _, name := range slices.Sorted(maps.Keys(data)) {
		typ, err := marker.InferQualityType(data[name])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		title := titles[name]
		if strings.TrimSpace(title) == "" {
			title = name
		}
		out = append(out, Indicator{Name: name, CnName: title, DataType: string(typ)})
	}
	return out, nil
}
