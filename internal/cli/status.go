package cli

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gzhole/promptshield/internal/config"
	"github.com/gzhole/promptshield/internal/policy"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show PromptShield status - config, policy, packs, records, API",
	Long: `Check how PromptShield is configured: which policy and packs are in
effect, whether reply verification has a model, where records are stored and
whether the API is answering.

  promptshield status`,
	RunE: statusCommand,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println("  PromptShield Status")
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println()

	binPath, err := os.Executable()
	if err != nil {
		binPath = "unknown"
	}
	fmt.Printf("  Binary:    %s (%s)\n", binPath, Version)
	fmt.Printf("  Config:    %s\n", cfg.ConfigDir)
	fmt.Println()

	fmt.Println("─── Policy ────────────────────────────────────────────")
	checkPolicyFile("Base policy", cfg.Policy.Path)
	engine, infos, err := policy.NewEngineFromFiles(cfg.Policy.Path, cfg.Policy.PacksDir)
	if err != nil {
		fmt.Printf("  ❌ Policy does not load: %v\n", err)
	} else {
		enabled := 0
		for _, info := range infos {
			if info.Enabled && info.Err == nil {
				enabled++
			}
		}
		fmt.Printf("  ✅ %d rules in effect\n", len(engine.Policy().Rules))
		if len(infos) > 0 {
			fmt.Printf("  ✅ Policy packs: %d installed, %d enabled\n", len(infos), enabled)
		} else {
			fmt.Println("  ⬚  No policy packs installed")
		}
	}
	fmt.Println()

	fmt.Println("─── Reply Verification ────────────────────────────────")
	checkVerification(cfg.Verification)
	fmt.Println()

	fmt.Println("─── Records ───────────────────────────────────────────")
	if cfg.Store.Ephemeral {
		fmt.Println("  ⚠  In-memory store: records are lost on restart")
	} else {
		checkRecordFile(cfg.Store.Path)
	}
	fmt.Println()

	fmt.Println("─── API ───────────────────────────────────────────────")
	checkAPI(cfg.Server.Addr)
	fmt.Println()
	return nil
}

func checkPolicyFile(name, path string) {
	if path == "" {
		fmt.Printf("  ⬚  %s: using built-in defaults\n", name)
		return
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  ✅ %s: %s\n", name, path)
	} else {
		fmt.Printf("  ⬚  %s: using built-in defaults (no custom file)\n", name)
	}
}

func checkVerification(v config.VerificationConfig) {
	switch {
	case v.Provider == "" || v.Provider == "none":
		fmt.Println("  ⬚  Disabled: verdicts will be pending")
	case v.APIKey() == "":
		fmt.Printf("  ⚠  %s configured but %s is not set: verdicts will be pending\n", v.Provider, v.APIKeyEnv)
	default:
		fmt.Printf("  ✅ %s (%s), timeout %s\n", v.Provider, v.Model, v.Timeout)
	}
}

func checkRecordFile(path string) {
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("  ⬚  %s (not yet created, will start on first record)\n", path)
		return
	}

	sizeKB := info.Size() / 1024
	if sizeKB == 0 {
		fmt.Printf("  ✅ %s (<1 KB)\n", path)
	} else {
		fmt.Printf("  ✅ %s (%d KB)\n", path, sizeKB)
	}
}

func checkAPI(addr string) {
	url := "http://" + addr + "/healthz"
	if len(addr) > 0 && addr[0] == ':' {
		url = "http://localhost" + addr + "/healthz"
	}
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Printf("  ⬚  Not running on %s\n", addr)
		return
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		fmt.Printf("  ✅ Serving on %s\n", addr)
	} else {
		fmt.Printf("  ⚠  %s answered %d\n", addr, resp.StatusCode)
	}
}
