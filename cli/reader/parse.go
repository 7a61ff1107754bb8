package reader

import (
	"errors"
	"time"

	"github.com/pithecene-io/scriptrun/types"
)

// ParseResultRecord converts an archived result record back into a
// StepResult. Numbers may be int, int64 (direct writes) or float64
// (JSON round-trips).
func ParseResultRecord(record map[string]any) (*types.StepResult, error) {
	if record == nil {
		return nil, errors.New("nil record")
	}

	res := &types.StepResult{
		ContractVersion: toString(record["contract_version"]),
		BuildID:         toString(record["build_id"]),
		TaskID:          toString(record["task_id"]),
		Shell:           toString(record["shell"]),
		Status:          types.StepStatus(toString(record["status"])),
		Message:         toString(record["message"]),
		ErrorType:       parseErrorType(toString(record["error_type"])),
		ErrorCode:       int(toInt64(record["error_code"])),
		ExitCode:        int(toInt64(record["exit_code"])),
		Duration:        time.Duration(toInt64(record["duration_ms"])) * time.Millisecond,
		Data:            parseOutputs(record["outputs"]),
		// Only archived results are known to have drained.
		Drained: true,
	}
	if ts := toString(record["started_at"]); ts != "" {
		started, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, errors.New("result record has malformed started_at: " + ts)
		}
		res.StartedAt = started
	}

	// The write path always populates these.
	if res.BuildID == "" {
		return nil, errors.New("result record missing required field: build_id")
	}
	switch res.Status {
	case types.StepStatusSuccess, types.StepStatusFailure, types.StepStatusError:
	default:
		return nil, errors.New("result record has invalid status: " + string(res.Status))
	}
	return res, nil
}

func parseErrorType(s string) types.ErrorType {
	switch s {
	case types.ErrorTypeUser.String():
		return types.ErrorTypeUser
	case types.ErrorTypePlugin.String():
		return types.ErrorTypePlugin
	default:
		return types.ErrorTypeNone
	}
}

func parseOutputs(v any) map[string]types.Output {
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]types.Output{}
	}
	out := make(map[string]types.Output, len(m))
	for name, raw := range m {
		fields, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		out[name] = types.Output{
			Type:       types.OutputType(toString(fields["type"])),
			Value:      toString(fields["value"]),
			Matches:    toStrings(fields["matches"]),
			ReportType: types.ReportType(toString(fields["report_type"])),
			Label:      toString(fields["label"]),
			URL:        toString(fields["url"]),
			Path:       toString(fields["path"]),
			Target:     toString(fields["target"]),
		}
	}
	return out
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toStrings handles []string (direct) and []any (JSON round-trip).
func toStrings(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
