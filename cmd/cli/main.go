package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledgerscan/internal/config"
	"github.com/dvloznov/ledgerscan/internal/extractor"
	infraBQ "github.com/dvloznov/ledgerscan/internal/infra/bigquery"
	"github.com/dvloznov/ledgerscan/internal/logger"
	"github.com/dvloznov/ledgerscan/internal/scanner"
	"github.com/dvloznov/ledgerscan/internal/statement"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "scan":
		runScan(log)
	case "parse":
		runParse(log)
	case "inspect":
		runInspect(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Ledgerscan CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  scan      Scan a local file and report the content verdict")
	fmt.Println("  parse     Dry-run a local statement PDF through extraction and parsing")
	fmt.Println("  inspect   Inspect an uploaded document by ID")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runScan(log zerolog.Logger) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	file := fs.String("file", "", "Path to the file to scan")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("-file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read file")
	}

	cfg := config.Load()
	result := scanner.New(cfg.MaxUploadBytes).Scan(data)

	fmt.Printf("File:    %s (%d bytes)\n", *file, len(data))
	if result.Clean {
		fmt.Println("Verdict: clean")
		return
	}
	fmt.Printf("Verdict: rejected (%s)\n", result.Verdict)
	os.Exit(1)
}

func runParse(log zerolog.Logger) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	file := fs.String("file", "", "Path to the statement PDF")
	bank := fs.String("bank", "", "Bank hint selecting the statement dialect (e.g. sparkasse, n26)")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("-file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read file")
	}

	cfg := config.Load()
	if result := scanner.New(cfg.MaxUploadBytes).Scan(data); !result.Clean {
		log.Fatal().Str("verdict", result.Verdict).Msg("File rejected by content scan")
	}

	ext := extractor.New()
	if !ext.Validate(data) {
		log.Fatal().Msg("File is not a readable PDF")
	}

	text, err := ext.ExtractText(data)
	if err != nil {
		log.Fatal().Err(err).Msg("Text extraction failed")
	}

	transactions, warnings, err := statement.NewRegistry().Get(*bank).Parse(text)
	if err != nil {
		log.Fatal().Err(err).Msg("Statement parsing failed")
	}

	fmt.Printf("Parsed %d transaction(s), %d line(s) skipped\n\n", len(transactions), len(warnings))
	for _, tx := range transactions {
		fmt.Printf("  %s  %8s  %-7s  %s\n",
			tx.TransactionDate.Format("2006-01-02"),
			tx.Amount.StringFixed(2),
			tx.Type,
			tx.Description)
	}
	for _, w := range warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

func runInspect(log zerolog.Logger) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	id := fs.String("id", "", "Document ID")
	fs.Parse(os.Args[2:])

	if *id == "" {
		log.Fatal().Msg("-id is required")
	}

	cfg := config.Load()
	if cfg.ProjectID == "" {
		log.Fatal().Msg("GCP_PROJECT is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := infraBQ.NewDocumentStore(ctx, cfg.ProjectID, cfg.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create document store")
	}
	defer store.Close()

	doc, err := store.Get(ctx, *id)
	if err != nil {
		log.Fatal().Err(err).Str("document_id", *id).Msg("Failed to load document")
	}

	fmt.Printf("Document:  %s\n", doc.ID)
	fmt.Printf("User:      %s\n", doc.UserID)
	fmt.Printf("Kind:      %s\n", doc.Kind)
	fmt.Printf("Status:    %s\n", doc.Status)
	fmt.Printf("Filename:  %s (%d bytes)\n", doc.OriginalFilename, doc.SizeBytes)
	if doc.ProcessingMessage != "" {
		fmt.Printf("Message:   %s\n", doc.ProcessingMessage)
	}
	if doc.StatementStart != nil && doc.StatementEnd != nil {
		fmt.Printf("Period:    %s to %s\n",
			doc.StatementStart.Format("2006-01-02"),
			doc.StatementEnd.Format("2006-01-02"))
	}
	if len(doc.ExtractedData) > 0 {
		fmt.Printf("Extracted: %d transaction(s)\n", len(doc.ExtractedData))
	}
}
