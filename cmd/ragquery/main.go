// ragquery runs one query through the retrieval workflow and prints the
// answer and the route it took.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/recall-labs/go-recall/src/app"
	"github.com/recall-labs/go-recall/src/config"
)

func main() {
	topK := flag.Int("top-k", 0, "number of chunks to retrieve (overrides RECALL_TOP_K)")
	policy := flag.String("fallthrough", "", "no-tools branch: generate or end (overrides RECALL_FALLTHROUGH)")
	showDocs := flag.Bool("docs", false, "print the retrieved documents")
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: ragquery [flags] <query>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ragquery: %v\n", err)
		os.Exit(1)
	}
	if *topK > 0 {
		cfg.TopK = *topK
	}
	if *policy != "" {
		cfg.Fallthrough = *policy
		if err := cfg.ResolveDefaults(); err != nil {
			fmt.Fprintf(os.Stderr, "ragquery: %v\n", err)
			os.Exit(2)
		}
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, "ragquery", true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ragquery: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	state, trail, err := a.Workflow().Run(ctx, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ragquery: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("route: %s\n", strings.Join(trail, " -> "))
	if state.RouteAfterTools != "" {
		fmt.Printf("tools: %s\n", state.RouteAfterTools)
	}
	if *showDocs {
		for _, doc := range state.RawResults {
			fmt.Printf("--- %s (similarity %.4f)\n%s\n", doc.ID, doc.Similarity, doc.Content)
		}
	}
	fmt.Println()
	fmt.Println(state.FinalOutput)
}
