package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/siherrmann/grimoire"
	"github.com/siherrmann/grimoire/helper"
	"github.com/siherrmann/grimoire/model"
)

// Pages of a tiny sample rulebook
var samplePages = []string{
	"Ability Scores\nSix abilities provide a quick description of every creature.\nStrength measures physical power.\nDexterity measures agility.",
	"Grappling\nWhen you want to grab a creature or wrestle with it, you can use the Attack action to make a special melee attack, a grapple.",
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "grimoire",
		Username: "grimoire",
		Password: "grimoire",
		Schema:   "public",
		SSLMode:  "disable",
	}

	// Needs ANTHROPIC_API_KEY and a running Ollama server
	config, err := model.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	corpusDir, err := os.MkdirTemp("", "grimoire-example-")
	if err != nil {
		log.Fatalf("Failed to create corpus directory: %v", err)
	}
	defer os.RemoveAll(corpusDir)

	if err := helper.WriteTestPDF(filepath.Join(corpusDir, "sample_rules.pdf"), samplePages); err != nil {
		log.Fatalf("Failed to write sample rulebook: %v", err)
	}
	config.Corpus.PDFDir = corpusDir

	g, err := grimoire.New(config, dbConfig)
	if err != nil {
		log.Fatalf("Failed to create grimoire: %v", err)
	}
	defer g.Close()

	report, err := g.BuildIndex(context.Background(), "")
	if err != nil {
		log.Fatalf("Failed to build index: %v", err)
	}
	fmt.Printf("Indexed %d documents into %d chunks\n", report.Documents, report.Chunks)

	for _, question := range []string{"What does Strength measure?", "How does grappling work?"} {
		result, err := g.Answer(context.Background(), question, config.RAG.TopK)
		if err != nil {
			log.Fatalf("Failed to answer %q: %v", question, err)
		}

		fmt.Printf("\nQ: %s\nA: %s\n", question, result.Answer)
		fmt.Printf("   method=%s confidence=%.2f sources=%d web_sources=%d\n", result.MethodUsed, result.Confidence, len(result.Sources), len(result.WebSources))
	}
}
