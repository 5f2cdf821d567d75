// Package verdict defines the outcome model shared by every gate stage.
//
// # Overview
//
// Each stage returns a Verdict: pass, fail(reason) or skipped(reason). Failures
// carry a Kind from a fixed taxonomy and the evidence that triggered them
// (matched line, offending value, output excerpt). A Report collects the
// verdicts of one run and decides the exit status.
//
// # Aggregation
//
// A run fails if any stage failed. Skipped stages (a missing audit or sandbox
// tool) never fail a run on their own but remain visible in the report:
//
//	report.Add(verdict.Skip(verdict.StageSandbox, "sandbox-unavailable", "no isolation primitive found"))
//	report.Passed() // true when nothing else failed
package verdict
