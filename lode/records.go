package lode

import (
	"time"

	"github.com/pithecene-io/scriptrun/types"
)

// Record kinds. record_kind is also the last Hive partition key.
const (
	RecordKindLine   = "line"
	RecordKindResult = "result"
)

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"project", "day", "build_id", "record_kind"}

// LineRecord is the storage shape of one output line.
type LineRecord struct {
	RecordKind      string `json:"record_kind"`
	ContractVersion string `json:"contract_version"`
	Stream          string `json:"stream"`
	Number          int    `json:"number"`
	Text            string `json:"text"`
	Ts              string `json:"ts"`

	Project string `json:"project"`
	Day     string `json:"day"`
	BuildID string `json:"build_id"`
	TaskID  string `json:"task_id,omitempty"`
	StepID  string `json:"step_id,omitempty"`
	Policy  string `json:"policy,omitempty"`
}

// ResultRecord is the storage shape of a step result.
type ResultRecord struct {
	RecordKind      string         `json:"record_kind"`
	ContractVersion string         `json:"contract_version"`
	Status          string         `json:"status"`
	Message         string         `json:"message"`
	ErrorType       string         `json:"error_type,omitempty"`
	ErrorCode       int            `json:"error_code,omitempty"`
	ExitCode        int            `json:"exit_code"`
	Shell           string         `json:"shell,omitempty"`
	Outputs         map[string]any `json:"outputs"`
	DurationMs      int64          `json:"duration_ms"`
	StartedAt       string         `json:"started_at"`

	Project string `json:"project"`
	Day     string `json:"day"`
	BuildID string `json:"build_id"`
	TaskID  string `json:"task_id,omitempty"`
	StepID  string `json:"step_id,omitempty"`
}

// toLineRecordMap converts a line to a map for the Hive layout, which
// requires records as map[string]any.
func toLineRecordMap(l *types.OutputLine, cfg Config, now time.Time) map[string]any {
	m := map[string]any{
		"record_kind":      RecordKindLine,
		"contract_version": types.ContractVersion,
		"stream":           string(l.Stream),
		"number":           l.Number,
		"text":             l.Text,
		"ts":               now.UTC().Format(time.RFC3339Nano),
	}
	addPartition(m, cfg)
	if cfg.Policy != "" {
		m["policy"] = cfg.Policy
	}
	return m
}

func toResultRecordMap(r *types.StepResult, cfg Config) map[string]any {
	outputs := make(map[string]any, len(r.Data))
	for k, o := range r.Data {
		out := map[string]any{"type": string(o.Type), "value": o.Value}
		if len(o.Matches) > 0 {
			out["matches"] = o.Matches
		}
		if o.ReportType != "" {
			out["report_type"] = string(o.ReportType)
			out["label"] = o.Label
			out["url"] = o.URL
			out["path"] = o.Path
			out["target"] = o.Target
		}
		outputs[k] = out
	}
	m := map[string]any{
		"record_kind":      RecordKindResult,
		"contract_version": r.ContractVersion,
		"status":           string(r.Status),
		"message":          r.Message,
		"exit_code":        r.ExitCode,
		"shell":            r.Shell,
		"outputs":          outputs,
		"duration_ms":      r.Duration.Milliseconds(),
		"started_at":       r.StartedAt.UTC().Format(time.RFC3339Nano),
	}
	if r.ErrorType != types.ErrorTypeNone {
		m["error_type"] = r.ErrorType.String()
		m["error_code"] = r.ErrorCode
	}
	addPartition(m, cfg)
	return m
}

func addPartition(m map[string]any, cfg Config) {
	m["project"] = partitionValue(cfg.Project)
	m["day"] = cfg.Day
	m["build_id"] = cfg.BuildID
	if cfg.TaskID != "" {
		m["task_id"] = cfg.TaskID
	}
	if cfg.StepID != "" {
		m["step_id"] = cfg.StepID
	}
}

// partitionValue keeps blank keys out of partition paths.
func partitionValue(v string) string {
	if v == "" {
		return "default"
	}
	return v
}
