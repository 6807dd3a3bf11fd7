// stockmeta generates stock metadata for local image files and prints the
// CSV document to stdout, without running the server.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"stockstudio/internal/asset"
	"stockstudio/internal/export"
	"stockstudio/internal/llm"
	"stockstudio/internal/pipeline"
	"stockstudio/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <image-path>...\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY       - Required\n")
		fmt.Fprintf(os.Stderr, "  STOCKSTUDIO_CACHE_DB - Optional generation cache database\n")
		os.Exit(1)
	}

	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "GEMINI_API_KEY is not set")
		os.Exit(1)
	}

	ctx := context.Background()

	geminiGenerator, err := llm.NewGeminiGenerator(ctx, apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize generator: %v\n", err)
		os.Exit(1)
	}

	var generator llm.Generator = geminiGenerator
	if cacheDB := os.Getenv("STOCKSTUDIO_CACHE_DB"); cacheDB != "" {
		cacheStore, err := storage.NewSQLiteStore(cacheDB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open generation cache: %v\n", err)
			os.Exit(1)
		}
		defer cacheStore.Close()
		generator = llm.NewCachedGenerator(geminiGenerator, cacheStore)
	}

	files := make([]asset.File, 0, len(os.Args)-1)
	for _, path := range os.Args[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read image %s: %v\n", path, err)
			os.Exit(1)
		}
		files = append(files, asset.File{
			Name:     filepath.Base(path),
			MimeType: mimeTypeFor(path),
			Data:     data,
		})
	}

	store, err := asset.NewStore("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	pipe := pipeline.New(store, generator)
	if _, err := pipe.Ingest(ctx, files); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to ingest images: %v\n", err)
		os.Exit(1)
	}
	pipe.Wait()

	failed := 0
	for _, a := range store.List("") {
		if a.Status == asset.StatusError {
			fmt.Fprintf(os.Stderr, "%s: %s\n", a.Name, a.Error)
			failed++
		}
	}

	if err := export.WriteCSV(os.Stdout, store.List("")); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write CSV: %v\n", err)
		os.Exit(1)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
