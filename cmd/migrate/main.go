package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"sentinel/internal/config"
	"sentinel/internal/logger"
	"sentinel/internal/repository/sqlite"
	"sentinel/internal/service/privacy"
)

func main() {
	roundsFile := flag.String("rounds", "rounds.json", "JSON array or JSON lines file of FL round reports")
	dbPath := flag.String("db", filepath.Join("data", "sentinel.db"), "Database path")
	ceiling := flag.Float64("ceiling", config.DefaultBudgetCeiling, "Total privacy budget (epsilon)")
	flag.Parse()

	fmt.Printf("Importing FL round history from %s into database %s\n", *roundsFile, *dbPath)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	file, err := os.Open(*roundsFile)
	if err != nil {
		log.Fatalf("Failed to open round history: %v", err)
	}
	defer file.Close()

	rounds := sqlite.NewRoundRepository(db)
	accountant := privacy.NewAccountant(*ceiling, rounds, logger.NewConsoleLogger(os.Stdout))

	result, err := accountant.Import(file)
	if err != nil {
		log.Fatalf("Failed to import round history: %v", err)
	}

	fmt.Printf("✅ Recorded %d round(s)\n", result.Recorded)
	if len(result.Skipped) > 0 {
		fmt.Printf("⚠️  Skipped %d round(s):\n", len(result.Skipped))
		for _, err := range result.Skipped {
			fmt.Printf("   - %v\n", err)
		}
	}

	left, err := accountant.Remaining()
	if err != nil {
		log.Fatalf("Failed to compute remaining budget: %v", err)
	}
	fmt.Printf("\n📊 Privacy budget: %.4f of %.4f epsilon remaining\n", left, accountant.Ceiling())
	if latest, err := rounds.GetLatest(); err == nil && latest != nil {
		fmt.Printf("   Latest round: %d (accuracy %.3f)\n", latest.Round, latest.Accuracy)
	}
}
