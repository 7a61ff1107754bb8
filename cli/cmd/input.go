package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
)

// atomInput is the task parameter document a pipeline passes to the
// step. Field names follow the pipeline's JSON.
type atomInput struct {
	Script        string `json:"script"`
	Shell         string `json:"shell"`
	CharsetType   string `json:"charsetType"`
	ManualCommand string `json:"manualCommand"`
}

// parseInput decodes raw, or the file it names when prefixed with '@'.
func parseInput(raw string) (atomInput, error) {
	var in atomInput
	if raw == "" {
		return in, nil
	}
	if path, ok := strings.CutPrefix(raw, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return in, fmt.Errorf("read input file: %w", err)
		}
		raw = string(data)
	}
	if err := sonic.UnmarshalString(raw, &in); err != nil {
		return in, fmt.Errorf("invalid input JSON: %w", err)
	}
	return in, nil
}

// parseVars parses repeated K=V flags. The value may contain '='.
func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --var %q (want KEY=VALUE)", p)
		}
		vars[strings.TrimSpace(k)] = v
	}
	return vars, nil
}

// loadVars merges env files in order, then the --var pairs on top.
func loadVars(envFiles, pairs []string) (map[string]string, error) {
	vars := map[string]string{}
	if len(envFiles) > 0 {
		fromFiles, err := godotenv.Read(envFiles...)
		if err != nil {
			return nil, fmt.Errorf("read env file: %w", err)
		}
		vars = fromFiles
	}
	fromFlags, err := parseVars(pairs)
	if err != nil {
		return nil, err
	}
	for k, v := range fromFlags {
		vars[k] = v
	}
	return vars, nil
}

// secretLookup resolves secret names against the step variables first,
// then the process environment.
func secretLookup(vars map[string]string, names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, n := range names {
		if v, ok := vars[n]; ok {
			out[n] = v
		} else if v, ok := os.LookupEnv(n); ok {
			out[n] = v
		}
	}
	return out
}

var errNoScript = errors.New("no script given: use --script, --script-file or --input")

// pickScript applies flag precedence: --script, --script-file, then the
// input document. in is nil without --input. A blank script from any
// source is returned as is so the step reports it.
func pickScript(inline, file string, in *atomInput) (string, error) {
	switch {
	case inline != "":
		return inline, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read script file: %w", err)
		}
		return string(data), nil
	case in != nil:
		return in.Script, nil
	default:
		return "", errNoScript
	}
}
