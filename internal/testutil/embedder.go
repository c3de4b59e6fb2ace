package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
)

// SetupEmbedder initializes Genkit with the Google AI plugin and
// returns a real embedder for integration tests. Skips the test when
// GEMINI_API_KEY is not set.
func SetupEmbedder(t *testing.T, model string) ai.Embedder {
	t.Helper()

	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set - skipping test requiring a real embedder")
	}

	ctx := context.Background()

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))

	embedder := googlegenai.GoogleAIEmbedder(g, model)
	if embedder == nil {
		t.Fatalf("embedder %q not available", model)
	}
	return embedder
}
