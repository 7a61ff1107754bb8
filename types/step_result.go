package types

import (
	"time"

	"github.com/pithecene-io/scriptrun/metrics"
)

// StepStatus is the terminal status of a step.
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	// StepStatusFailure is a user-attributable failure.
	StepStatusFailure StepStatus = "failure"
	// StepStatusError is an unexpected plugin error.
	StepStatusError StepStatus = "error"
)

// ErrorType attributes a failed step to the user or to the plugin.
type ErrorType int

const (
	ErrorTypeNone   ErrorType = 0
	ErrorTypeUser   ErrorType = 1
	ErrorTypePlugin ErrorType = 2
)

// String returns the wire name of the error type.
func (e ErrorType) String() string {
	switch e {
	case ErrorTypeUser:
		return "USER"
	case ErrorTypePlugin:
		return "PLUGIN"
	default:
		return ""
	}
}

// Error codes reported with failed steps.
const (
	ErrCodePluginDefault                = 2199001
	ErrCodePluginCreateQualityIndicator = 2199002
	ErrCodePluginSaveQualityData        = 2199003
	ErrCodeUserInputInvalid             = 2199002
	ErrCodeUserTaskOperateFail          = 2199004
	ErrCodeUserScriptCommandInvalid     = 2199009
	ErrCodeUserScriptTaskFail           = 2199011
)

// OutputType discriminates step outputs.
type OutputType string

const (
	OutputTypeString   OutputType = "string"
	OutputTypeArtifact OutputType = "artifact"
	OutputTypeReport   OutputType = "report"
)

// ReportType discriminates report outputs.
type ReportType string

const (
	ReportTypeThirdParty ReportType = "THIRDPARTY"
	ReportTypeInternal   ReportType = "INTERNAL"
)

// Output is one typed step output.
type Output struct {
	Type  OutputType `json:"type" yaml:"type"`
	Value string     `json:"value,omitempty" yaml:"value,omitempty"`

	// Matches lists workspace files matched by an artifact glob.
	Matches []string `json:"matches,omitempty" yaml:"matches,omitempty"`

	ReportType ReportType `json:"report_type,omitempty" yaml:"report_type,omitempty"`
	Label      string     `json:"label,omitempty" yaml:"label,omitempty"`
	URL        string     `json:"url,omitempty" yaml:"url,omitempty"`
	Path       string     `json:"path,omitempty" yaml:"path,omitempty"`
	Target     string     `json:"target,omitempty" yaml:"target,omitempty"`
}

// StringOutput builds a plain string output.
func StringOutput(v string) Output {
	return Output{Type: OutputTypeString, Value: v}
}

// StepResult is the single terminal result of a step invocation.
type StepResult struct {
	ContractVersion string            `json:"contract_version"`
	BuildID         string            `json:"build_id"`
	TaskID          string            `json:"task_id,omitempty"`
	Shell           string            `json:"shell,omitempty"`
	Status          StepStatus        `json:"status"`
	Message         string            `json:"message"`
	ErrorType       ErrorType         `json:"error_type,omitempty"`
	ErrorCode       int               `json:"error_code,omitempty"`
	ExitCode        int               `json:"exit_code"`
	Data            map[string]Output `json:"data"`
	// Output holds the decoded stdout text when capture is enabled.
	Output      string        `json:"output,omitempty"`
	Drained     bool          `json:"drained"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	StoragePath string        `json:"storage_path,omitempty"`

	Metrics *metrics.Snapshot `json:"metrics,omitempty"`
}

// Succeeded reports whether the step finished with StepStatusSuccess.
func (r *StepResult) Succeeded() bool {
	return r != nil && r.Status == StepStatusSuccess
}
