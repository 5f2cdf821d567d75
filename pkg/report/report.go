// Package report renders gate reports for people and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/platinummonkey/plugingate/pkg/verdict"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists the supported output formats
var Formats = []string{FormatText, FormatJSON, FormatYAML}

// ValidateFormat rejects unknown format names
func ValidateFormat(format string) error {
	for _, f := range Formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q (want one of %s)", format, strings.Join(Formats, ", "))
}

// Write renders report to w in the given format
func Write(w io.Writer, format string, report *verdict.Report) error {
	switch format {
	case FormatJSON, FormatYAML:
		return Encode(w, format, report)
	case FormatText, "":
		return writeText(w, report)
	default:
		return ValidateFormat(format)
	}
}

// Encode writes any value as JSON or YAML
func Encode(w io.Writer, format string, v interface{}) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return ValidateFormat(format)
	}
}

func writeText(w io.Writer, report *verdict.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Plugin:\t%s\n", orUnknown(report.Plugin))
	fmt.Fprintf(tw, "Binary:\t%s\n", report.Binary)
	fmt.Fprintf(tw, "Run:\t%s\n", report.RunID)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "STAGE\tSTATUS\tREASON\tDURATION\tMESSAGE")
	for _, v := range report.Verdicts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.Stage, v.Status, dash(v.Reason), v.Duration.Round(time.Millisecond), v.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	result := "PASS"
	if !report.Passed() {
		result = "FAIL"
	}
	_, err := fmt.Fprintf(w, "\nResult: %s\n", result)
	return err
}

// WriteEvidence prints the evidence of every failing or skipped stage, one
// indented line per item
func WriteEvidence(w io.Writer, report *verdict.Report) error {
	for _, v := range report.Verdicts {
		if v.Status == verdict.StatusPass {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %s: %s\n", v, v.Kind, v.Message); err != nil {
			return err
		}
		for _, e := range v.Evidence {
			if _, err := fmt.Fprintf(w, "    %s\n", e); err != nil {
				return err
			}
		}
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return "(unknown)"
	}
	return s
}
