package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"chart-analysis-be/internal/pkg/logger"
	"chart-analysis-be/pkg/embedding"
	"chart-analysis-be/pkg/fingerprint"
	"chart-analysis-be/pkg/retry"
	"chart-analysis-be/pkg/similarity"
	"chart-analysis-be/pkg/visual"
)

// Runs the offline half of the pipeline against a single image and reports
// what each stage produced. With -corpus it also embeds a directory of
// reference charts and shows the target's nearest neighbors. No server or
// external provider required.
func main() {
	path := flag.String("image", "", "chart image to diagnose")
	corpus := flag.String("corpus", "", "optional directory of reference charts for neighbor lookup")
	flag.Parse()
	if *path == "" {
		log.Fatal("usage: diagnose -image <chart image> [-corpus <chart directory>]")
	}

	data, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalf("read image: %v", err)
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	hash := fingerprint.Fingerprint(data)
	fmt.Printf("%s %s (%d bytes)\n", cyan("Fingerprint:"), hash, len(data))

	sysLogger := logger.NewNopLogger()
	store := fingerprint.NewMemoryStore()
	ctx := context.Background()

	started := time.Now()
	maps, err := visual.NewGenerator(store, sysLogger).Generate(ctx, data)
	if err != nil {
		fmt.Printf("%s decode failed: %v\n", red("✗"), err)
		os.Exit(1)
	}
	elapsed := time.Since(started)
	for _, kind := range fingerprint.MapKinds {
		if mapErr, bad := maps.Errors[kind]; bad {
			fmt.Printf("%s %s map: %v\n", red("✗"), kind, mapErr)
			continue
		}
		fmt.Printf("%s %s map: %d bytes\n", green("✓"), kind, len(maps.Map(kind)))
	}
	fmt.Printf("%s map generation took %s\n", cyan("•"), elapsed.Round(time.Millisecond))

	embedGen := embedding.NewGenerator(embedding.NewSignatureProvider(), store, sysLogger, retry.Config{})
	vec, err := embedGen.Embed(ctx, data)
	if err != nil {
		fmt.Printf("%s embedding: %v\n", red("✗"), err)
		os.Exit(1)
	}
	fmt.Printf("%s embedding: %d dimensions (signature provider)\n", green("✓"), len(vec))

	if *corpus == "" {
		return
	}

	index := similarity.NewIndex(sysLogger)
	names := make(map[uuid.UUID]string)
	err = filepath.WalkDir(*corpus, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff", ".webp":
		default:
			return nil
		}
		refData, err := os.ReadFile(p)
		if err != nil {
			return nil
		}
		refVec, err := embedGen.Embed(ctx, refData)
		if err != nil {
			fmt.Printf("%s %s: %v\n", red("✗"), filepath.Base(p), err)
			return nil
		}
		id := uuid.New()
		names[id] = filepath.Base(p)
		return index.Upsert(similarity.Record{ChartId: id, Vector: refVec})
	})
	if err != nil {
		log.Fatalf("walk corpus: %v", err)
	}

	fmt.Printf("%s corpus: %d charts indexed\n", cyan("•"), index.Size())
	for i, match := range index.TopK(vec, 3) {
		fmt.Printf("  %d. %s (similarity %.4f)\n", i+1, names[match.Record.ChartId], match.Similarity)
	}
}
