// Package aggregate turns a finished step's scratch files into typed
// step outputs.
package aggregate

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/pithecene-io/scriptrun/marker"
	"github.com/pithecene-io/scriptrun/scratch"
	"github.com/pithecene-io/scriptrun/types"
)

var (
	// ErrMalformedKey is returned for a context key that is neither a
	// plain name nor a five-part output key.
	ErrMalformedKey = errors.New("The script failed to execute. The set-output or set-variable settings are incorrect. Please check") //nolint:staticcheck // user-facing message
	// ErrUnsupportedOutputType is returned for a set-output type other
	// than string, artifact or report.
	ErrUnsupportedOutputType = errors.New("The script execution failed. The set-output setting is wrong. Please check") //nolint:staticcheck // user-facing message
)

var envKey = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// outputParts is the number of comma-separated fields in an output key:
// name,type,label,path,reportType.
const outputParts = 5

// Collect reads the context, multi-line and env files of set and builds
// the step's outputs. workspace resolves artifact globs; pass "" to skip
// resolution.
func Collect(set *scratch.Set, cs types.Charset, workspace string) (map[string]types.Output, error) {
	entries, err := scratch.ReadKeyValues(set.ContextFile())
	if err != nil {
		return nil, fmt.Errorf("read context file: %w", err)
	}
	multi, err := MultiLine(set.MultiLineFile(), cs)
	if err != nil {
		return nil, err
	}
	maps.Copy(entries, multi)

	data := make(map[string]types.Output, len(entries))
	for _, key := range slices.Sorted(maps.Keys(entries)) {
		name, out, err := Dispatch(key, entries[key], workspace)
		if err != nil {
			return nil, err
		}
		data[name] = out
	}

	env, err := Env(set)
	if err != nil {
		return nil, err
	}
	for k, v := range env {
		data[k] = types.StringOutput(v)
	}
	return data, nil
}

// MultiLine parses escaped markers written by format_multiple_lines.
func MultiLine(path string, cs types.Charset) (map[string]string, error) {
	lines, err := scratch.ReadLines(path, cs)
	if err != nil {
		return nil, fmt.Errorf("read multi-line file: %w", err)
	}
	out := make(map[string]string, len(lines))
	for _, l := range lines {
		rec, ok := marker.ParseVariable(l)
		if !ok {
			rec, ok = marker.ParseOutput(l)
		}
		if !ok {
			continue
		}
		k, v, _ := strings.Cut(rec, "=")
		out[strings.TrimSpace(k)] = marker.Unescape(strings.TrimSpace(v))
	}
	return out, nil
}

// Env reads the default env file and then the suffixed one. Keys that
// are not valid variable names are dropped.
func Env(set *scratch.Set) (map[string]string, error) {
	out := map[string]string{}
	for _, p := range []string{set.DefaultEnvFile(), set.EnvFile()} {
		kv, err := scratch.ReadKeyValues(p)
		if err != nil {
			return nil, fmt.Errorf("read env file: %w", err)
		}
		for k, v := range kv {
			if envKey.MatchString(k) {
				out[k] = v
			}
		}
	}
	return out, nil
}

// Dispatch maps one context entry to an output name and value.
func Dispatch(key, value, workspace string) (string, types.Output, error) {
	parts := strings.Split(key, ",")
	switch len(parts) {
	case 1:
		return key, types.StringOutput(value), nil
	case outputParts:
	default:
		return "", types.Output{}, fmt.Errorf("%w: [false]%v", ErrMalformedKey, parts)
	}

	name, typ, label, path, reportType := parts[0], parts[1], parts[2], parts[3], parts[4]
	switch types.OutputType(typ) {
	case types.OutputTypeString:
		return name, types.StringOutput(value), nil
	case types.OutputTypeArtifact:
		return name, types.Output{
			Type:    types.OutputTypeArtifact,
			Value:   value,
			Matches: Matches(workspace, value),
		}, nil
	case types.OutputTypeReport:
		class, err := marker.ClassifyReport(path, reportType)
		if err != nil {
			return "", types.Output{}, err
		}
		if class == marker.ReportThirdParty {
			return name, types.Output{
				Type:       types.OutputTypeReport,
				ReportType: types.ReportTypeThirdParty,
				Label:      label,
				URL:        value,
			}, nil
		}
		return name, types.Output{
			Type:       types.OutputTypeReport,
			ReportType: types.ReportTypeInternal,
			Label:      label,
			Path:       path,
			Target:     value,
		}, nil
	default:
		return "", types.Output{}, fmt.Errorf("%w:%v", ErrUnsupportedOutputType, parts)
	}
}

// Matches resolves an artifact glob against workspace and returns the
// matched files as slash-separated workspace-relative paths. Patterns
// outside the workspace and invalid patterns match nothing.
func Matches(workspace, pattern string) []string {
	pattern = strings.TrimSpace(pattern)
	if workspace == "" || pattern == "" {
		return nil
	}
	if filepath.IsAbs(pattern) {
		rel, err := filepath.Rel(workspace, pattern)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil
		}
		pattern = rel
	}
	pattern = strings.TrimPrefix(filepath.ToSlash(pattern), "./")
	if !doublestar.ValidatePattern(pattern) {
		return nil
	}
	matches, err := doublestar.Glob(os.DirFS(workspace), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil
	}
	slices.Sort(matches)
	return matches
}
