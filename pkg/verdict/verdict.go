package verdict

import (
	"fmt"
	"strings"
	"time"
)

// Stage identifies one check of the gate pipeline
type Stage string

const (
	StageManifest     Stage = "manifest"
	StageDependencies Stage = "dependencies"
	StageSource       Stage = "source"
	StageSandbox      Stage = "sandbox"
	StageOutput       Stage = "output"
)

// AllStages lists every stage in pipeline order
var AllStages = []Stage{StageManifest, StageDependencies, StageSource, StageSandbox, StageOutput}

// ParseStage converts a stage name into a Stage
func ParseStage(name string) (Stage, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range AllStages {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown stage: %q", name)
}

// Status is the outcome of a single stage
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusSkipped Status = "skipped"
)

// Kind classifies why a stage did not pass
type Kind string

const (
	KindNone              Kind = ""
	KindContractViolation Kind = "ContractViolation" // manifest missing, malformed or out of range
	KindPolicyViolation   Kind = "PolicyViolation"   // forbidden dependency or API present
	KindExecutionFailure  Kind = "ExecutionFailure"  // crash, timeout, nonzero exit
	KindOutputViolation   Kind = "OutputViolation"   // markup present or grammar prefix missing
	KindToolUnavailable   Kind = "ToolUnavailable"   // audit or sandbox tool missing, degrades to skip
)

// Verdict is the result of one stage
type Verdict struct {
	Stage    Stage         `json:"stage" yaml:"stage"`
	Status   Status        `json:"status" yaml:"status"`
	Kind     Kind          `json:"kind,omitempty" yaml:"kind,omitempty"`
	Reason   string        `json:"reason,omitempty" yaml:"reason,omitempty"`   // machine readable code, e.g. category-empty
	Message  string        `json:"message,omitempty" yaml:"message,omitempty"` // human readable description
	Evidence []string      `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Pass builds a passing verdict
func Pass(stage Stage, message string, evidence ...string) Verdict {
	return Verdict{
		Stage:    stage,
		Status:   StatusPass,
		Message:  message,
		Evidence: evidence,
	}
}

// Fail builds a failing verdict
func Fail(stage Stage, kind Kind, reason, message string, evidence ...string) Verdict {
	return Verdict{
		Stage:    stage,
		Status:   StatusFail,
		Kind:     kind,
		Reason:   reason,
		Message:  message,
		Evidence: evidence,
	}
}

// Skip builds a skipped verdict. Skips are always attributed to a missing tool.
func Skip(stage Stage, reason, message string) Verdict {
	return Verdict{
		Stage:   stage,
		Status:  StatusSkipped,
		Kind:    KindToolUnavailable,
		Reason:  reason,
		Message: message,
	}
}

// Failed reports whether the verdict is a failure
func (v Verdict) Failed() bool {
	return v.Status == StatusFail
}

// String renders the verdict on a single line
func (v Verdict) String() string {
	switch v.Status {
	case StatusPass:
		return fmt.Sprintf("%s: pass", v.Stage)
	default:
		return fmt.Sprintf("%s: %s(%s)", v.Stage, v.Status, v.Reason)
	}
}

// WithDuration returns a copy of the verdict carrying the elapsed time
func (v Verdict) WithDuration(d time.Duration) Verdict {
	v.Duration = d
	return v
}
