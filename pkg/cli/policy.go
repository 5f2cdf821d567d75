package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/platinummonkey/plugingate/pkg/policy"
	"github.com/platinummonkey/plugingate/pkg/report"
	"github.com/spf13/cobra"
)

// policyView is the serialisable form of the compiled policy
type policyView struct {
	DependencyDenylist []patternView `json:"dependency_denylist" yaml:"dependency_denylist"`
	SourceDenylist     []patternView `json:"source_denylist" yaml:"source_denylist"`
	SourceExtensions   []string      `json:"source_extensions" yaml:"source_extensions"`
	SkipDirs           []string      `json:"skip_dirs" yaml:"skip_dirs"`
	MarkupDenylist     []string      `json:"markup_denylist" yaml:"markup_denylist"`
	DirectivePrefix    string        `json:"directive_prefix" yaml:"directive_prefix"`
	CategoryMaxLength  int           `json:"category_max_length" yaml:"category_max_length"`
	CategoryPattern    string        `json:"category_pattern" yaml:"category_pattern"`
}

type patternView struct {
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
	Expr     string `json:"expr" yaml:"expr"`
}

func newPolicyView(p *policy.Policy) policyView {
	return policyView{
		DependencyDenylist: patternViews(p.DependencyDenylist),
		SourceDenylist:     patternViews(p.SourceDenylist),
		SourceExtensions:   p.SourceExtensions,
		SkipDirs:           p.SkipDirs,
		MarkupDenylist:     p.MarkupDenylist,
		DirectivePrefix:    p.DirectivePrefix,
		CategoryMaxLength:  p.CategoryMaxLength,
		CategoryPattern:    p.CategoryPattern.String(),
	}
}

func patternViews(patterns []policy.Pattern) []patternView {
	views := make([]patternView, 0, len(patterns))
	for _, pat := range patterns {
		views = append(views, patternView{Name: pat.Name, Category: pat.Category, Expr: pat.Expr()})
	}
	return views
}

func newPolicyCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Print the compiled denylists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := report.ValidateFormat(format); err != nil {
				return usageError("%v", err)
			}
			view := newPolicyView(policy.Default())
			if format == report.FormatText {
				return writePolicyText(cmd.OutOrStdout(), view)
			}
			return report.Encode(cmd.OutOrStdout(), format, view)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", report.FormatText, "output format (text, json, yaml)")
	return cmd
}

func writePolicyText(w io.Writer, view policyView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "DEPENDENCY\tCATEGORY\tPATTERN")
	for _, p := range view.DependencyDenylist {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Category, p.Expr)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "SOURCE API\tCATEGORY\tPATTERN")
	for _, p := range view.SourceDenylist {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Category, p.Expr)
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Source extensions:\t%v\n", view.SourceExtensions)
	fmt.Fprintf(tw, "Skipped directories:\t%v\n", view.SkipDirs)
	fmt.Fprintf(tw, "Markup denylist:\t%v\n", view.MarkupDenylist)
	fmt.Fprintf(tw, "Directive prefix:\t%q\n", view.DirectivePrefix)
	fmt.Fprintf(tw, "Category:\tat most %d characters matching %s\n", view.CategoryMaxLength, view.CategoryPattern)

	return tw.Flush()
}
