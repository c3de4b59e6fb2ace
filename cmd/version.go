package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coachai/coachai/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration information",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Printf("CoachAI %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	fmt.Println("Configuration:")
	fmt.Printf("  Provider: %s\n", cfg.Provider)
	fmt.Printf("  Embedder: %s (%d dimensions)\n", cfg.EmbedderModel, cfg.EmbeddingDimension)
	fmt.Printf("  Top K: %d\n", cfg.TopK)
	fmt.Printf("  Direct vector index: %s\n", configured(cfg.HasPostgres()))
	fmt.Printf("  Remote lesson store: %s\n", configured(cfg.HasSupabase()))

	// Show key presence without leaking the key itself.
	if key := os.Getenv("GEMINI_API_KEY"); len(key) >= 8 {
		fmt.Printf("  GEMINI_API_KEY: %s...%s (configured)\n", key[:4], key[len(key)-4:])
	} else if key != "" {
		fmt.Println("  GEMINI_API_KEY: configured")
	} else {
		fmt.Println("  GEMINI_API_KEY: not set")
	}

	return nil
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "disabled"
}
