// Package reader loads finished step results for read-only CLI commands.
//
// A result comes either from a file written by `scriptrun run
// --output-file` or from the newest result record in the archive.
package reader

import (
	"context"
	"errors"
	"fmt"

	golode "github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/scriptrun/lode"
	"github.com/pithecene-io/scriptrun/runtime"
	"github.com/pithecene-io/scriptrun/types"
)

// ErrNoSource is returned when neither a file nor an archive is given.
var ErrNoSource = errors.New("no result source: pass a result file or configure storage")

// Source locates one step result.
type Source struct {
	// File is a result JSON file. It takes precedence over Dataset.
	File string
	// Dataset is an opened archive dataset.
	Dataset golode.Dataset
	// BuildID filters archive results; blank picks the newest.
	BuildID string
}

// Load returns the step result src points at.
func Load(ctx context.Context, src Source) (*types.StepResult, error) {
	switch {
	case src.File != "":
		return runtime.ReadResultFile(src.File)
	case src.Dataset != nil:
		return FromArchive(ctx, src.Dataset, src.BuildID)
	default:
		return nil, ErrNoSource
	}
}

// FromArchive returns the newest archived result for buildID.
func FromArchive(ctx context.Context, ds golode.Dataset, buildID string) (*types.StepResult, error) {
	record, err := lode.QueryLatestResult(ctx, ds, buildID)
	if err != nil {
		return nil, err
	}
	res, err := ParseResultRecord(record)
	if err != nil {
		return nil, fmt.Errorf("archived result: %w", err)
	}
	return res, nil
}
