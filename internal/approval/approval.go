package approval

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

type Result struct {
	Approved   bool
	UserAction string
}

// Prompt describes a submission held for confirmation.
type Prompt struct {
	Masked         string
	RiskScore      int
	RiskLevel      string
	TriggeredRules []string
	Reasons        []string
}

func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Ask asks on the terminal. Without a terminal the warning is declined.
func Ask(p Prompt) Result {
	if !IsInteractive() {
		return Result{
			Approved:   false,
			UserAction: "auto_cancel_non_interactive",
		}
	}
	return AskFrom(os.Stdin, os.Stderr, p)
}

// AskFrom runs the confirmation dialogue over arbitrary streams.
func AskFrom(in io.Reader, out io.Writer, p Prompt) Result {
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(out, "║              ⚠️  SENSITIVE DATA WARNING                       ║")
	fmt.Fprintln(out, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(out, "")
	fmt.Fprintf(out, "Masked prompt: %s\n", p.Masked)
	fmt.Fprintf(out, "Risk: %d (%s)\n", p.RiskScore, p.RiskLevel)
	fmt.Fprintln(out, "")

	if len(p.TriggeredRules) > 0 {
		fmt.Fprintf(out, "Triggered rules: %s\n", strings.Join(p.TriggeredRules, ", "))
	}

	if len(p.Reasons) > 0 {
		fmt.Fprintln(out, "Reasons:")
		for _, reason := range p.Reasons {
			fmt.Fprintf(out, "  • %s\n", reason)
		}
	}

	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Options:")
	fmt.Fprintln(out, "  [s] Send - forward the masked prompt")
	fmt.Fprintln(out, "  [c] Cancel - do not send")
	fmt.Fprintln(out, "")

	reader := bufio.NewReader(in)

	for {
		fmt.Fprint(out, "Your choice [s/c]: ")
		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			return Result{
				Approved:   false,
				UserAction: "error_reading_input",
			}
		}

		input = strings.TrimSpace(strings.ToLower(input))

		switch input {
		case "s", "send", "yes", "y":
			return Result{
				Approved:   true,
				UserAction: "send",
			}
		case "c", "cancel", "no", "n":
			return Result{
				Approved:   false,
				UserAction: "cancel",
			}
		default:
			if err != nil {
				return Result{Approved: false, UserAction: "error_reading_input"}
			}
			fmt.Fprintln(out, "Invalid input. Please enter 's' to send or 'c' to cancel.")
		}
	}
}
