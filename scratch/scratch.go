// Package scratch owns the per-step files shared between the wrapper
// script, the output pipeline and the aggregator.
//
// All files live in the workspace. Names are scoped by build id and a
// random per-step suffix, except the quality gateway file, whose fixed
// name is shared by every step in the workspace and is guarded by an
// advisory file lock.
package scratch

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/pithecene-io/scriptrun/iox"
	"github.com/pithecene-io/scriptrun/marker"
	"github.com/pithecene-io/scriptrun/stream"
	"github.com/pithecene-io/scriptrun/types"
)

const (
	envSuffix       = "result.log"
	multiLineSuffix = "multiLine.log"
	contextSuffix   = "context.log"

	// GatewayFile is the fixed name of the quality gateway file.
	GatewayFile = "gatewayValueFile.ini"
	gatewayLock = "." + GatewayFile + ".lock"
)

// Set is the scratch file set of one step.
type Set struct {
	dir     string
	buildID string
	suffix  string

	mu sync.Mutex
}

// New creates a set with a fresh random suffix.
func New(dir, buildID string) *Set {
	return NewWithSuffix(dir, buildID, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// NewWithSuffix creates a set with a fixed suffix.
func NewWithSuffix(dir, buildID, suffix string) *Set {
	return &Set{dir: dir, buildID: buildID, suffix: suffix}
}

// Dir returns the workspace directory.
func (s *Set) Dir() string { return s.dir }

// Suffix returns the per-step random suffix.
func (s *Set) Suffix() string { return s.suffix }

// EnvFile is where setEnv appends KEY=VALUE lines.
func (s *Set) EnvFile() string { return s.path(s.buildID + "-" + s.suffix + "-" + envSuffix) }

// DefaultEnvFile is the legacy env file without the suffix.
func (s *Set) DefaultEnvFile() string { return s.path(s.buildID + "-" + envSuffix) }

// MultiLineFile is where format_multiple_lines appends escaped markers.
func (s *Set) MultiLineFile() string { return s.path(s.buildID + "-" + s.suffix + "-" + multiLineSuffix) }

// ContextFile is where the pipeline persists marker records.
func (s *Set) ContextFile() string { return s.path(s.buildID + "-" + s.suffix + "-" + contextSuffix) }

// GatewayFile is the shared quality gateway file.
func (s *Set) GatewayFile() string { return s.path(GatewayFile) }

func (s *Set) path(name string) string { return filepath.Join(s.dir, name) }

// Clean recreates the env, default env, context and multi-line files empty.
func (s *Set) Clean() error {
	for _, p := range []string{s.EnvFile(), s.DefaultEnvFile(), s.ContextFile(), s.MultiLineFile()} {
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			return fmt.Errorf("clean scratch file %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

// Remove deletes the step's files. The gateway file is left to the
// quality reporter.
func (s *Set) Remove() error {
	var errs []error
	for _, p := range []string{s.MultiLineFile(), s.DefaultEnvFile(), s.EnvFile(), s.ContextFile()} {
		if err := iox.RemoveIfExists(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Record implements pipeline.MarkerStore. Gate values go to the gateway
// file; everything else goes to the context file.
func (s *Set) Record(m marker.Marker) error {
	if m.Kind == marker.KindGate {
		return AppendGateway(s.dir, m.Record())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return iox.AppendLine(s.ContextFile(), m.Record())
}

// AppendGateway appends a gate record to the workspace gateway file
// under the gateway lock.
func AppendGateway(dir, record string) error {
	unlock, err := LockGateway(dir)
	if err != nil {
		return err
	}
	defer iox.DiscardErr(unlock)
	return iox.AppendLine(filepath.Join(dir, GatewayFile), record)
}

// LockGateway takes the exclusive gateway lock for dir.
func LockGateway(dir string) (func() error, error) {
	fl := flock.New(filepath.Join(dir, gatewayLock))
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("lock %s: %w", GatewayFile, err)
	}
	return fl.Unlock, nil
}

// ReadLines reads path decoded with cs. A missing file or a directory
// yields no lines.
func ReadLines(path string, cs types.Charset) ([]string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	decoded, err := stream.Decoder(cs).Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(decoded))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimSuffix(sc.Text(), "\r"))
	}
	return lines, sc.Err()
}

// ReadKeyValues reads KEY=VALUE lines split on the first '='. Lines
// without '=' are skipped; keys and values are trimmed. Later lines win.
func ReadKeyValues(path string) (map[string]string, error) {
	lines, err := ReadLines(path, types.CharsetUTF8)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(lines))
	for _, l := range lines {
		k, v, ok := strings.Cut(l, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}
