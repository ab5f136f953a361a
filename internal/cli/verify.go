package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gzhole/promptshield/internal/pipeline"
)

var (
	verifyPrompt   string
	verifyResponse string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Cross-check an AI reply against the secondary model",
	Long: `Ask the configured secondary model the same masked prompt and compare
its answer with the reply you received. The verdict is attached to the
matching record when one exists.

  promptshield verify --prompt "capital of [LOCATION_1]?" --response "Paris"`,
	RunE: verifyCommand,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyPrompt, "prompt", "", "Masked prompt that was sent")
	verifyCmd.Flags().StringVar(&verifyResponse, "response", "", "Reply received from the primary model")
	_ = verifyCmd.MarkFlagRequired("prompt")
	_ = verifyCmd.MarkFlagRequired("response")
	rootCmd.AddCommand(verifyCmd)
}

func verifyCommand(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := rt.pipeline.Verify(cmd.Context(), pipeline.VerifyRequest{
		MaskedPrompt: verifyPrompt,
		AIResponse:   verifyResponse,
	})
	if out.Note != "" {
		fmt.Fprintln(os.Stderr, out.Note)
	}
	if out.Degraded {
		fmt.Fprintln(os.Stderr, "warning: verdict not saved to the record")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out.Result)
}
