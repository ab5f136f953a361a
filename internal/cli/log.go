package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gzhole/promptshield/internal/catalog"
	"github.com/gzhole/promptshield/internal/redact"
	"github.com/gzhole/promptshield/internal/store"
)

var (
	logFilterLevel   string
	logFilterOutcome string
	logLast          int
	logSummary       bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter submission records",
	Long: `View the PromptShield record store with filtering and summary options.
Records are shown oldest first; prompts are masked and redacted for display.

Examples:
  promptshield log                         # Show all records
  promptshield log --last 20               # Show last 20 records
  promptshield log --level CRITICAL        # Show only critical-risk records
  promptshield log --outcome BLOCKED_ATTACK
  promptshield log --summary               # Show summary stats`,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().StringVar(&logFilterLevel, "level", "", "Filter by risk level (CRITICAL, HIGH, MEDIUM, LOW)")
	logCmd.Flags().StringVar(&logFilterOutcome, "outcome", "", "Filter by outcome (ALLOWED, CONTINUE, CANCELLED, BLOCKED_ATTACK, BLOCKED_POLICY, EXTERNAL)")
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N records")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := store.OpenJSONL(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer st.Close()

	recs, err := oldestFirst(cmd.Context(), st)
	if err != nil {
		return fmt.Errorf("failed to read records: %w", err)
	}
	if len(recs) == 0 {
		fmt.Println("No records found.")
		return nil
	}

	filtered := filterRecords(recs, logFilterLevel, logFilterOutcome)
	if logLast > 0 && logLast < len(filtered) {
		filtered = filtered[len(filtered)-logLast:]
	}

	if logSummary {
		printSummary(os.Stdout, recs)
		return nil
	}
	printRecords(os.Stdout, filtered)
	return nil
}

func oldestFirst(ctx context.Context, st store.Store) ([]*store.Record, error) {
	recs, err := st.Recent(ctx, 0)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

func filterRecords(recs []*store.Record, level, outcome string) []*store.Record {
	if level == "" && outcome == "" {
		return recs
	}
	var out []*store.Record
	for _, r := range recs {
		if level != "" && !strings.EqualFold(string(r.RiskLevel), level) {
			continue
		}
		if outcome != "" && !strings.EqualFold(string(r.Outcome), outcome) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func outcomeIcon(o store.Outcome) string {
	switch o {
	case store.OutcomeBlockedAttack, store.OutcomeBlockedPolicy:
		return "\xf0\x9f\x9b\x91" // stop sign
	case store.OutcomeCancelled:
		return "\xe2\x9d\x8c" // cross mark
	case store.OutcomeContinued:
		return "\xe2\x9a\xa0\xef\xb8\x8f" // warning
	case store.OutcomeExternal:
		return "\xf0\x9f\x93\xa5" // inbox
	default:
		return "\xe2\x9c\x85" // check mark
	}
}

func printRecords(w io.Writer, recs []*store.Record) {
	for _, r := range recs {
		fmt.Fprintf(w, "%s %s %-14s ", outcomeIcon(r.Outcome), formatTimestamp(r.Timestamp), r.Outcome)
		levelColor(r.RiskLevel).Fprintf(w, "%3d %-8s", r.RiskScore, r.RiskLevel)
		fmt.Fprintf(w, " %s\n", redact.ForLog(r.MaskedPrompt))

		if r.Platform != "" {
			fmt.Fprintf(w, "     Platform: %s\n", r.Platform)
		}
		if len(r.Detections) > 0 {
			kinds := make([]string, len(r.Detections))
			for i, d := range r.Detections {
				kinds[i] = d.Kind
			}
			fmt.Fprintf(w, "     Detections: %s\n", strings.Join(kinds, ", "))
		}
		for _, v := range r.PolicyViolations {
			fmt.Fprintf(w, "     Rule: %s (%s)\n", v.PolicyID, v.Action)
		}
		for _, a := range r.AttacksDetected {
			fmt.Fprintf(w, "     Attack: %s\n", a.Category)
		}
		if r.Verification != nil {
			fmt.Fprintf(w, "     Verification: %s (%s)\n", r.Verification.Status, r.Verification.ConfidencePercent)
		}
		fmt.Fprintln(w)
	}
}

func printSummary(w io.Writer, recs []*store.Record) {
	levels := map[catalog.Level]int{}
	outcomes := map[store.Outcome]int{}
	verified := 0
	for _, r := range recs {
		levels[r.RiskLevel]++
		outcomes[r.Outcome]++
		if r.Verification != nil {
			verified++
		}
	}

	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintln(w, "  PromptShield Record Summary")
	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintf(w, "  Total records:   %d\n", len(recs))
	for _, l := range []catalog.Level{catalog.LevelCritical, catalog.LevelHigh, catalog.LevelMedium, catalog.LevelLow} {
		fmt.Fprintf(w, "  %-16s %d\n", string(l)+":", levels[l])
	}
	fmt.Fprintln(w, "───────────────────────────────────────────")
	for _, o := range []store.Outcome{
		store.OutcomeAllowed, store.OutcomeContinued, store.OutcomeCancelled,
		store.OutcomeBlockedAttack, store.OutcomeBlockedPolicy, store.OutcomeExternal,
	} {
		fmt.Fprintf(w, "  %-16s %d\n", string(o)+":", outcomes[o])
	}
	fmt.Fprintf(w, "  Verified replies: %d\n", verified)
	fmt.Fprintln(w, "═══════════════════════════════════════════")

	fmt.Fprintf(w, "  First record:    %s\n", formatTimestamp(recs[0].Timestamp))
	fmt.Fprintf(w, "  Last record:     %s\n", formatTimestamp(recs[len(recs)-1].Timestamp))

	var blocked []*store.Record
	for _, r := range recs {
		if r.Outcome == store.OutcomeBlockedAttack || r.Outcome == store.OutcomeBlockedPolicy {
			blocked = append(blocked, r)
		}
	}
	if len(blocked) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Blocked prompts:")
		limit := min(len(blocked), 10)
		for _, r := range blocked[len(blocked)-limit:] {
			fmt.Fprintf(w, "    %s %s\n", formatTimestamp(r.Timestamp), redact.ForLog(r.OriginalPrompt))
		}
	}
	fmt.Fprintln(w)
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}
