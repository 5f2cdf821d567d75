package scanner

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/platinummonkey/plugingate/pkg/policy"
	"github.com/platinummonkey/plugingate/pkg/verdict"
	"github.com/sirupsen/logrus"
)

// Source stage reason codes
const (
	ReasonForbiddenSourceAPI = "forbidden-source-api"
	ReasonSourceUnreadable   = "source-unreadable"
)

// maxLineLength bounds a single source line; minified or generated files with
// longer lines are still scanned up to this size
const maxLineLength = 1024 * 1024

// Finding is one denylisted API occurrence
type Finding struct {
	File    string // relative to the scanned root, slash separated
	Line    int
	Text    string
	Pattern policy.Pattern
}

// String renders the finding as file:line: text
func (f Finding) String() string {
	return fmt.Sprintf("%s:%d: %s", f.File, f.Line, f.Text)
}

// SourceScanner scans plugin source trees against the source denylist
type SourceScanner struct {
	policy *policy.Policy
	logger logrus.FieldLogger
}

// NewSourceScanner creates a scanner for the given policy
func NewSourceScanner(p *policy.Policy, logger logrus.FieldLogger) *SourceScanner {
	return &SourceScanner{
		policy: p,
		logger: logger,
	}
}

// Check scans root and converts the findings into a source stage verdict
func (s *SourceScanner) Check(ctx context.Context, root string) verdict.Verdict {
	start := time.Now()

	findings, files, err := s.Scan(ctx, root)
	if err != nil {
		return verdict.Fail(verdict.StageSource, verdict.KindContractViolation, ReasonSourceUnreadable,
			"could not read the plugin source tree", err.Error()).WithDuration(time.Since(start))
	}

	if len(findings) > 0 {
		evidence := make([]string, 0, len(findings))
		for _, f := range findings {
			evidence = append(evidence, f.String())
		}
		return verdict.Fail(verdict.StageSource, verdict.KindPolicyViolation, ReasonForbiddenSourceAPI,
			fmt.Sprintf("%d forbidden API use(s) in %d scanned file(s): %s", len(findings), files, patternNames(findings)),
			evidence...).WithDuration(time.Since(start))
	}

	return verdict.Pass(verdict.StageSource,
		fmt.Sprintf("%d source file(s) scanned, no forbidden API", files)).WithDuration(time.Since(start))
}

// Scan walks root and returns every denylist match ordered by path then line,
// along with the number of files scanned
func (s *SourceScanner) Scan(ctx context.Context, root string) ([]Finding, int, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat source tree: %w", err)
	}
	if !info.IsDir() {
		return nil, 0, fmt.Errorf("source tree %s is not a directory", root)
	}

	var findings []Finding
	files := 0

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if info.IsDir() {
			if path != root && s.policy.IsSkippedDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || !s.policy.IsSourceFile(path) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		fileFindings, err := s.scanFile(path, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		files++
		findings = append(findings, fileFindings...)
		return nil
	})
	if err != nil {
		return nil, files, fmt.Errorf("failed to walk source tree: %w", err)
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		return findings[i].Line < findings[j].Line
	})

	s.logger.Debugf("Scanned %d source files under %s, %d findings", files, root, len(findings))
	return findings, files, nil
}

func (s *SourceScanner) scanFile(path, rel string) ([]Finding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var findings []Finding
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		matched := s.policy.MatchSource(line)
		if len(matched) == 0 {
			continue
		}
		// One finding per line; the first pattern names it
		findings = append(findings, Finding{
			File:    rel,
			Line:    lineNo,
			Text:    strings.TrimSpace(line),
			Pattern: matched[0],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	return findings, nil
}

func patternNames(findings []Finding) string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range findings {
		if !seen[f.Pattern.Name] {
			seen[f.Pattern.Name] = true
			names = append(names, f.Pattern.Name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
