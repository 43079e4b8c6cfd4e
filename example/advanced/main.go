package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/siherrmann/grimoire"
	"github.com/siherrmann/grimoire/api"
	"github.com/siherrmann/grimoire/database"
	"github.com/siherrmann/grimoire/helper"
	"github.com/siherrmann/grimoire/model"
)

// Indexes the rulebooks in PDF_DIR, switches the vector index to IVFFlat,
// answers questions through the REST API and prints health, stats and history.
func main() {
	ctx := context.Background()

	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "grimoire",
		Username: "grimoire",
		Password: "grimoire",
		Schema:   "public",
		SSLMode:  "disable",
	}

	config, err := model.LoadConfig(os.Getenv("GRIMOIRE_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	g, err := grimoire.New(config, dbConfig)
	if err != nil {
		log.Fatalf("Failed to create grimoire: %v", err)
	}
	defer g.Close()

	report, err := g.BuildIndex(ctx, "")
	if err != nil {
		log.Fatalf("Failed to build index from %s: %v", config.Corpus.PDFDir, err)
	}
	fmt.Printf("Indexed %d documents into %d chunks in %s\n", report.Documents, report.Chunks, report.Duration)

	// Rebuild nightly while the example runs
	scheduler, err := g.ScheduleRebuilds("@midnight")
	if err != nil {
		log.Fatalf("Failed to schedule rebuilds: %v", err)
	}
	defer scheduler.Stop(ctx)

	// IVFFlat builds faster on large corpora, the next rebuild restores HNSW
	lists := report.Chunks / 1000
	if lists < 1 {
		lists = 1
	}
	if err := g.ChangeIndexType(ctx, database.IndexTypeIVFFlat, database.IndexOptions{Lists: lists}); err != nil {
		log.Fatalf("Failed to change index type: %v", err)
	}

	server := httptest.NewServer(api.New(g, config.Server, config.RAG.TopK, g.Logger()).Handler())
	defer server.Close()

	questions := []string{
		"What are the six ability scores?",
		"How does an opportunity attack work?",
		"What are the six ability scores?", // served from the cache
	}
	for _, question := range questions {
		body := fmt.Sprintf(`{"question":%q,"top_k":5}`, question)
		resp, err := server.Client().Post(server.URL+"/query", "application/json", strings.NewReader(body))
		if err != nil {
			log.Fatalf("Query failed: %v", err)
		}

		var result api.QueryResponse
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			log.Fatalf("Failed to decode response: %v", err)
		}
		if result.QueryResult == nil {
			fmt.Printf("\nQ: %s\n   failed with status %d\n", question, resp.StatusCode)
			continue
		}

		fmt.Printf("\nQ: %s\nA: %s\n", question, result.Answer)
		fmt.Printf("   method=%s confidence=%.2f cached=%v time=%.2fs\n", result.MethodUsed, result.Confidence, result.Cached, result.ResponseTime)
	}

	health := g.Health(ctx)
	fmt.Printf("\nHealth: %s (vectors=%d pdfs=%d)\n", health.Status, health.VectorCount, health.PDFCount)
	for _, check := range health.Checks {
		fmt.Printf("  %-10s ok=%v %s\n", check.Name, check.OK, check.Detail)
	}

	stats, err := g.Stats(ctx)
	if err != nil {
		log.Fatalf("Failed to get stats: %v", err)
	}
	fmt.Printf("\nStats: %d chunks, %d documents, %d cached answers, dimension %d\n",
		stats.Index.ChunkCount, stats.Index.DocumentCount, stats.Index.CacheEntries, stats.Index.Dimension)

	history, err := g.History(ctx, 0)
	if err != nil {
		log.Fatalf("Failed to get history: %v", err)
	}
	fmt.Printf("\nHistory (%d entries):\n", len(history))
	for _, entry := range history {
		fmt.Printf("  %s -> %s\n", entry.Question, entry.Result.MethodUsed)
	}
}
