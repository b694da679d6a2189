// ingest chunks text files into the shared document-chunk index used by the
// retrieval workflow.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/recall-labs/go-recall/src/app"
	"github.com/recall-labs/go-recall/src/config"
	"github.com/recall-labs/go-recall/src/corpus"
)

func main() {
	rebuild := flag.Bool("rebuild", false, "drop the index and start from empty")
	maxTokens := flag.Int("max-tokens", 0, "chunk size in estimated tokens (overrides RECALL_INGEST_TOKENS)")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 && !*rebuild {
		fmt.Fprintln(os.Stderr, "usage: ingest [-rebuild] [-max-tokens n] <file>...")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingest: %v\n", err)
		os.Exit(1)
	}
	tokens := cfg.IngestTokens
	if *maxTokens > 0 {
		tokens = *maxTokens
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, "ingest", false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingest: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ing := corpus.NewIngestor(a.Index, a.Embedder, corpus.IngestorOptions{
		MaxTokens: tokens,
		Logger:    &a.Log,
	})

	if *rebuild {
		if err := ing.Rebuild(ctx); err != nil {
			a.Log.Fatal().Err(err).Msg("rebuild failed")
		}
		a.Log.Info().Msg("index rebuilt")
	}

	total := 0
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			a.Log.Fatal().Err(err).Str("file", path).Msg("open failed")
		}
		n, err := ing.IngestReader(ctx, f, filepath.Base(path))
		f.Close()
		if err != nil {
			a.Log.Fatal().Err(err).Str("file", path).Msg("ingest failed")
		}
		total += n
	}

	count, err := a.Index.Count(ctx)
	if err != nil {
		a.Log.Warn().Err(err).Msg("count unavailable")
		fmt.Printf("ingested %d chunks\n", total)
		return
	}
	fmt.Printf("ingested %d chunks (%d total in index)\n", total, count)
}
