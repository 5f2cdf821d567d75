package verdict

import "time"

// Report aggregates the verdicts of one pipeline run
type Report struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	Plugin    string    `json:"plugin" yaml:"plugin"`
	Binary    string    `json:"binary" yaml:"binary"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	State     string    `json:"state" yaml:"state"` // final pipeline state
	Verdicts  []Verdict `json:"verdicts" yaml:"verdicts"`
}

// Add appends a verdict to the report
func (r *Report) Add(v Verdict) {
	r.Verdicts = append(r.Verdicts, v)
}

// Passed is true when no stage failed. Skipped stages do not fail a run.
func (r *Report) Passed() bool {
	for _, v := range r.Verdicts {
		if v.Failed() {
			return false
		}
	}
	return true
}

// Failures returns the failing verdicts in report order
func (r *Report) Failures() []Verdict {
	var failed []Verdict
	for _, v := range r.Verdicts {
		if v.Failed() {
			failed = append(failed, v)
		}
	}
	return failed
}

// Skipped returns the skipped verdicts in report order
func (r *Report) Skipped() []Verdict {
	var skipped []Verdict
	for _, v := range r.Verdicts {
		if v.Status == StatusSkipped {
			skipped = append(skipped, v)
		}
	}
	return skipped
}

// Verdict returns the verdict recorded for a stage
func (r *Report) Verdict(stage Stage) (Verdict, bool) {
	for _, v := range r.Verdicts {
		if v.Stage == stage {
			return v, true
		}
	}
	return Verdict{}, false
}

// ExitCode maps the report onto the process exit status
func (r *Report) ExitCode() int {
	if r.Passed() {
		return 0
	}
	return 1
}
