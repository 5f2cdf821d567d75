package output

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/plugingate/pkg/plugins"
	"github.com/platinummonkey/plugingate/pkg/policy"
	"github.com/platinummonkey/plugingate/pkg/process"
	"github.com/platinummonkey/plugingate/pkg/verdict"
	"github.com/sirupsen/logrus"
)

// Output stage reason codes
const (
	ReasonContainsMarkup     = "output-contains-markup"
	ReasonNotDirective       = "output-not-directive"
	ReasonExampleUnavailable = "example-unavailable"
	ReasonRoundTripFailed    = "round-trip-failed"
)

// excerptLimit bounds lines quoted as evidence
const excerptLimit = 200

// GrammarValidator checks rendered output against the markup denylist and
// the directive prefix
type GrammarValidator struct {
	policy *policy.Policy
	logger logrus.FieldLogger
}

// NewGrammarValidator creates a validator for the given policy
func NewGrammarValidator(p *policy.Policy, logger logrus.FieldLogger) *GrammarValidator {
	return &GrammarValidator{
		policy: p,
		logger: logger,
	}
}

// Check renders the plugin's own example and validates the result
func (g *GrammarValidator) Check(ctx context.Context, plugin plugins.Contract) verdict.Verdict {
	start := time.Now()

	example, err := plugin.Example(ctx)
	if err != nil {
		return verdict.Fail(verdict.StageOutput, verdict.KindExecutionFailure, ReasonExampleUnavailable,
			"could not obtain the example document", err.Error()).WithDuration(time.Since(start))
	}

	rendered, err := plugin.Render(ctx, example)
	if err != nil {
		return verdict.Fail(verdict.StageOutput, verdict.KindExecutionFailure, ReasonRoundTripFailed,
			"rendering the example document failed", err.Error()).WithDuration(time.Since(start))
	}

	g.logger.Debugf("Example of %d bytes rendered to %d bytes", len(example), len(rendered))
	return g.Validate(rendered).WithDuration(time.Since(start))
}

// Validate applies the markup denylist first, then the directive prefix
// rule to the first line. Empty output has no directive and fails.
func (g *GrammarValidator) Validate(out []byte) verdict.Verdict {
	text := string(out)

	if token, offset, ok := g.policy.MatchMarkup(text); ok {
		line, lineNo := lineAt(text, offset)
		return verdict.Fail(verdict.StageOutput, verdict.KindOutputViolation, ReasonContainsMarkup,
			fmt.Sprintf("output contains markup %q on line %d", token, lineNo),
			"token="+token,
			fmt.Sprintf("line %d: %s", lineNo, excerpt(line)))
	}

	first := firstLine(text)
	if !strings.HasPrefix(first, g.policy.DirectivePrefix) {
		return verdict.Fail(verdict.StageOutput, verdict.KindOutputViolation, ReasonNotDirective,
			fmt.Sprintf("first line does not begin with %q", g.policy.DirectivePrefix),
			"first_line="+excerpt(first))
	}

	return verdict.Pass(verdict.StageOutput,
		fmt.Sprintf("%d bytes of output, first line is a directive", len(out)))
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSuffix(text, "\r")
}

// lineAt returns the line containing offset and its 1-based number
func lineAt(text string, offset int) (string, int) {
	if offset > len(text) {
		offset = len(text)
	}
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	lineNo := strings.Count(text[:offset], "\n") + 1
	line := text[lineStart:]
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSuffix(line, "\r"), lineNo
}

func excerpt(line string) string {
	return process.Excerpt([]byte(line), excerptLimit)
}
