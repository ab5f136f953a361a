package cli

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "promptshield",
	Short: "PromptShield - prompt firewall for AI chat tools",
	Long: `PromptShield sits between users and AI chat platforms. It blocks prompt
attacks, masks sensitive data with reversible placeholders, scores the risk
of what remains, enforces policy, and cross-checks AI replies against a
second model.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML file (default: ~/.promptshield/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console, json or auto (overrides config)")
}

func Execute() error {
	return rootCmd.Execute()
}
