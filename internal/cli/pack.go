package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/promptshield/internal/policy"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Manage policy packs",
	Long: `Manage PromptShield policy packs.

Policy packs are YAML rule files for a specific data domain (finance, health,
source code). Packs are stored in ~/.promptshield/packs/ and their rules are
appended to your base policy at runtime.

Examples:
  promptshield pack list                  # List installed packs
  promptshield pack enable finance        # Enable a pack
  promptshield pack disable finance       # Disable a pack
  promptshield pack show finance          # Show pack details`,
}

var packListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed policy packs",
	RunE:  packList,
}

var packEnableCmd = &cobra.Command{
	Use:   "enable <pack-name>",
	Short: "Enable a disabled policy pack",
	Args:  cobra.ExactArgs(1),
	RunE:  packEnable,
}

var packDisableCmd = &cobra.Command{
	Use:   "disable <pack-name>",
	Short: "Disable a policy pack (prefix with underscore)",
	Args:  cobra.ExactArgs(1),
	RunE:  packDisable,
}

var packShowCmd = &cobra.Command{
	Use:   "show <pack-name>",
	Short: "Show details of a policy pack",
	Args:  cobra.ExactArgs(1),
	RunE:  packShow,
}

func init() {
	packCmd.AddCommand(packListCmd)
	packCmd.AddCommand(packEnableCmd)
	packCmd.AddCommand(packDisableCmd)
	packCmd.AddCommand(packShowCmd)
	rootCmd.AddCommand(packCmd)
}

func packsDir() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	dir := cfg.Policy.PacksDir
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

func packList(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}

	base := policy.DefaultPolicy()
	_, infos, err := policy.LoadPacks(dir, base)
	if err != nil {
		return fmt.Errorf("failed to load packs: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No policy packs installed.")
		fmt.Printf("\nTo install packs, copy YAML files to: %s\n", dir)
		fmt.Println("Example packs are in the packs/ directory of the PromptShield repo.")
		return nil
	}

	fmt.Println("Installed Policy Packs:")
	fmt.Println(strings.Repeat("─", 60))
	for _, info := range infos {
		status := "\xe2\x9c\x85" // check mark
		if !info.Enabled {
			status = "\xe2\x9d\x8c" // cross mark
		}
		if info.Err != nil {
			status = "\xe2\x9a\xa0\xef\xb8\x8f" // warning
		}
		fmt.Printf("  %s  %-25s %s\n", status, info.Name, info.Description)
		if info.Err != nil {
			fmt.Printf("       error: %v\n", info.Err)
		} else if info.Version != "" {
			fmt.Printf("       v%s by %s  (%d rules)\n", info.Version, info.Author, info.RuleCount)
		}
	}
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("\nPacks directory: %s\n", dir)
	return nil
}

func packEnable(cmd *cobra.Command, args []string) error {
	return togglePack(args[0], true)
}

func packDisable(cmd *cobra.Command, args []string) error {
	return togglePack(args[0], false)
}

// packPaths returns the enabled and disabled file names for a pack.
func packPaths(dir, name string) (enabled, disabled string) {
	return filepath.Join(dir, name+".yaml"), filepath.Join(dir, "_"+name+".yaml")
}

func togglePack(name string, enable bool) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}
	changed, err := setPackEnabled(dir, name, enable)
	if err != nil {
		return err
	}

	state := "disabled"
	if enable {
		state = "enabled"
	}
	if !changed {
		fmt.Printf("Pack '%s' is already %s.\n", name, state)
		return nil
	}
	fmt.Printf("Pack '%s' %s. Restart 'promptshield serve' to apply.\n", name, state)
	return nil
}

// setPackEnabled renames the pack file in dir. It reports whether anything
// changed.
func setPackEnabled(dir, name string, enable bool) (bool, error) {
	enabledPath, disabledPath := packPaths(dir, name)
	from, to := disabledPath, enabledPath
	if !enable {
		from, to = enabledPath, disabledPath
	}

	if _, err := os.Stat(from); err == nil {
		if err := os.Rename(from, to); err != nil {
			return false, fmt.Errorf("failed to update pack: %w", err)
		}
		return true, nil
	}
	if _, err := os.Stat(to); err == nil {
		return false, nil
	}
	return false, fmt.Errorf("pack '%s' not found in %s", name, dir)
}

func packShow(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}

	name := args[0]
	path, disabled := packPaths(dir, name)
	if _, err := os.Stat(path); err != nil {
		path = disabled
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("pack '%s' not found in %s", name, dir)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	fmt.Println(string(data))
	return nil
}
