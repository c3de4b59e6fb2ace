package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coachai/coachai/internal/boost"
)

var (
	askTopK      int
	askImageType string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Find the lessons most relevant to a question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "number of lessons to retrieve (default from config)")
	askCmd.Flags().StringVar(&askImageType, "image-type", "",
		`content type hint: "Math Equations", "Diagram/Chart" or "Handwritten Notes"`)
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, cleanup, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	query := strings.Join(args, " ")

	topK := askTopK
	if topK <= 0 {
		topK = a.Config.TopK
	}

	hits, err := a.Repository.Search(ctx, query, topK)
	if err != nil {
		return fmt.Errorf("searching lessons: %w", err)
	}

	if askImageType != "" {
		hits = a.Booster.Rerank(ctx, query, hits, boost.ContentType(askImageType), topK)
	}

	if len(hits) == 0 {
		fmt.Println("No relevant lessons found.")
		return nil
	}

	for i, hit := range hits {
		fmt.Printf("%d. %s (%.3f)\n", i+1, hit.Topic, hit.Similarity)
		if hit.Subject != "" || hit.Level != "" {
			fmt.Printf("   %s\n", strings.TrimSpace(hit.Subject+" "+hit.Level))
		}
		fmt.Printf("   %s\n", snippet(hit.Content, 160))
	}
	return nil
}

// snippet truncates s to at most n runes, appending an ellipsis.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
