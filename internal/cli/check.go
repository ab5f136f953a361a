package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gzhole/promptshield/internal/approval"
	"github.com/gzhole/promptshield/internal/attack"
	"github.com/gzhole/promptshield/internal/catalog"
	"github.com/gzhole/promptshield/internal/pipeline"
)

var (
	checkDryRun   bool
	checkNoRecord bool
	checkPlatform string
)

var checkCmd = &cobra.Command{
	Use:   "check [text|-]",
	Short: "Run a prompt through the firewall",
	Long: `Run text through attack scanning, masking, risk scoring and policy.
Released text is printed to stdout with placeholders in place of sensitive
values. Warnings ask for confirmation on the terminal and are cancelled when
no terminal is attached.

Examples:
  promptshield check "my email is a@b.com"
  pbpaste | promptshield check -
  promptshield check --dry-run "ssn 123-45-6789"`,
	Args: cobra.ArbitraryArgs,
	RunE: checkCommand,
}

func init() {
	checkCmd.Flags().BoolVar(&checkDryRun, "dry-run", false, "Only report what would happen; nothing is recorded")
	checkCmd.Flags().BoolVar(&checkNoRecord, "no-record", false, "Keep the record in memory instead of the record store")
	checkCmd.Flags().StringVar(&checkPlatform, "platform", "cli", "Platform name stored with the record")
	rootCmd.AddCommand(checkCmd)
}

func readInput(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("no text provided. Usage: promptshield check [text|-]")
	}
	return strings.Join(args, " "), nil
}

func checkCommand(cmd *cobra.Command, args []string) error {
	text, err := readInput(args, os.Stdin)
	if err != nil {
		return err
	}

	rt, err := openRuntime(checkNoRecord || checkDryRun)
	if err != nil {
		return err
	}
	defer rt.Close()

	if checkDryRun {
		renderPreview(os.Stderr, rt.pipeline.Preview(text))
		return nil
	}

	d := rt.pipeline.SubmitAndWait(cmd.Context(), pipeline.Submission{
		Text:     text,
		Platform: checkPlatform,
	}, func(_ context.Context, d pipeline.Decision) bool {
		// A terminal read cannot be interrupted; the process exits once the
		// command returns.
		return approval.Ask(approvalPrompt(d)).Approved
	})

	renderDecision(os.Stderr, d)
	if !d.State.Released() {
		return fmt.Errorf("prompt not released: %s", d.State)
	}
	fmt.Fprintln(os.Stdout, d.Masked)
	return nil
}

func approvalPrompt(d pipeline.Decision) approval.Prompt {
	p := approval.Prompt{
		Masked:    d.Masked,
		RiskScore: d.RiskScore,
		RiskLevel: string(d.RiskLevel),
	}
	for _, v := range d.Violations {
		p.TriggeredRules = append(p.TriggeredRules, v.PolicyID)
		if v.Message != "" {
			p.Reasons = append(p.Reasons, v.Message)
		}
	}
	return p
}

func levelColor(l catalog.Level) *color.Color {
	switch l {
	case catalog.LevelCritical:
		return color.New(color.FgRed, color.Bold)
	case catalog.LevelHigh:
		return color.New(color.FgRed)
	case catalog.LevelMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

func stateIcon(s pipeline.State) string {
	switch s {
	case pipeline.StateBlockedAttack, pipeline.StateBlockedPolicy:
		return "\xf0\x9f\x9b\x91" // stop sign
	case pipeline.StateCancelled:
		return "\xe2\x9d\x8c" // cross mark
	case pipeline.StateContinued:
		return "\xe2\x9a\xa0\xef\xb8\x8f" // warning
	default:
		return "\xe2\x9c\x85" // check mark
	}
}

func renderDecision(w io.Writer, d pipeline.Decision) {
	fmt.Fprintf(w, "%s %s  ", stateIcon(d.State), d.State)
	levelColor(d.RiskLevel).Fprintf(w, "risk %d (%s)\n", d.RiskScore, d.RiskLevel)

	if len(d.Attacks) > 0 {
		cats := attack.Categories(d.Attacks)
		names := make([]string, len(cats))
		for i, c := range cats {
			names[i] = string(c)
		}
		color.New(color.FgRed).Fprintf(w, "  Attack signatures: %s\n", strings.Join(names, ", "))
	}
	for _, det := range d.Detections {
		fmt.Fprintf(w, "  %-16s %s\n", det.Kind, det.Placeholder)
	}
	for _, v := range d.Violations {
		fmt.Fprintf(w, "  Rule %s (%s): %s\n", v.PolicyID, v.Action, v.Message)
	}
	if d.Degraded {
		color.New(color.FgYellow).Fprintf(w, "  warning: record not saved: %s\n", d.DegradedReason)
	}
}

func renderPreview(w io.Writer, pr pipeline.PreviewResult) {
	verdict := string(pr.Action)
	if len(pr.Attacks) > 0 {
		verdict = "BLOCK (attack)"
	}
	fmt.Fprintf(w, "Dry run: %s  ", verdict)
	levelColor(pr.RiskLevel).Fprintf(w, "risk %d (%s)\n", pr.RiskScore, pr.RiskLevel)

	kinds := make([]string, 0, len(pr.Counts))
	for k := range pr.Counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-16s x%d\n", k, pr.Counts[k])
	}
	for _, a := range pr.Attacks {
		fmt.Fprintf(w, "  %-16s %s\n", a.Category, a.Pattern)
	}
	if len(pr.Violations) > 0 {
		fmt.Fprintf(w, "  Rules: %s\n", strings.Join(pr.Violations, ", "))
	}
}
