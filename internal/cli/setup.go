package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gzhole/promptshield/internal/config"
	"github.com/gzhole/promptshield/internal/policy"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write default config, policy and policy packs",
	Long: `Create ~/.promptshield with a default config.yaml and policy.yaml and
install the bundled policy packs. Existing files are left alone unless
--force is given.

  promptshield setup
  promptshield setup --packs ./packs
  promptshield setup --force`,
	RunE: setupCommand,
}

var (
	setupForce    bool
	setupPacksSrc string
)

func init() {
	setupCmd.Flags().BoolVar(&setupForce, "force", false, "Overwrite existing config and policy files")
	setupCmd.Flags().StringVar(&setupPacksSrc, "packs", "", "Directory of policy packs to install (default: bundled packs)")
	rootCmd.AddCommand(setupCmd)
}

func setupCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cfgFile := configPath
	if cfgFile == "" {
		cfgFile = filepath.Join(cfg.ConfigDir, config.DefaultConfigFile)
	}
	if wrote, err := writeYAML(cfgFile, cfg, setupForce); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	} else if wrote {
		fmt.Printf("✅ Config written: %s\n", cfgFile)
	} else {
		fmt.Printf("   Config exists:  %s\n", cfgFile)
	}

	if wrote, err := writeYAML(cfg.Policy.Path, policy.DefaultPolicy(), setupForce); err != nil {
		return fmt.Errorf("failed to write policy: %w", err)
	} else if wrote {
		fmt.Printf("✅ Policy written: %s\n", cfg.Policy.Path)
	} else {
		fmt.Printf("   Policy exists:  %s\n", cfg.Policy.Path)
	}

	if err := os.MkdirAll(cfg.Policy.PacksDir, 0700); err != nil {
		return fmt.Errorf("failed to create packs dir: %w", err)
	}
	src := setupPacksSrc
	if src == "" {
		src = findPacksSource()
	}
	if src != "" {
		installed := installPacks(src, cfg.Policy.PacksDir)
		fmt.Printf("✅ %d policy packs installed to %s\n", installed, cfg.Policy.PacksDir)
	}

	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  promptshield scan                    # self-test the policy")
	fmt.Println("  promptshield pack list               # show policy packs")
	fmt.Println("  promptshield serve                   # start the API for the extension")
	if cfg.Verification.APIKey() == "" && cfg.Verification.Provider != "none" {
		fmt.Printf("  export %s=...   # enable reply verification\n", cfg.Verification.APIKeyEnv)
	}
	return nil
}

// writeYAML marshals v to path unless the file exists and force is false.
func writeYAML(path string, v any, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return false, err
	}
	return true, nil
}

// findPacksSource looks for bundled policy packs next to the binary or in the
// working directory.
func findPacksSource() string {
	var candidates []string
	if binPath, err := exec.LookPath("promptshield"); err == nil {
		binDir := filepath.Dir(binPath)
		candidates = append(candidates,
			filepath.Join(binDir, "..", "share", "promptshield", "packs"),
			filepath.Join(binDir, "..", "packs"),
		)
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, "packs"))
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return ""
}

// installPacks copies pack files from src to dst, skipping files that already
// exist in either enabled or disabled form.
func installPacks(srcDir, dstDir string) int {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return 0
	}

	installed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		name := e.Name()[:len(e.Name())-len(".yaml")]
		enabled, disabled := packPaths(dstDir, name)
		if fileExists(enabled) || fileExists(disabled) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(srcDir, e.Name()))
		if err != nil {
			continue
		}
		if err := os.WriteFile(enabled, data, 0600); err != nil {
			fmt.Fprintf(os.Stderr, "⚠  Failed to install pack %s: %v\n", e.Name(), err)
			continue
		}
		installed++
	}
	return installed
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
