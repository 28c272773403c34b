// Command clearhistory wipes the delivered-news ledger after an interactive
// confirmation. Useful when the query set changes and old entries would
// suppress legitimately fresh articles.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/lib/pq"

	"medwatch/internal/config"
	"medwatch/internal/infrastructure/storage"
	"medwatch/pkg/logger"
)

func main() {
	log := logger.New("clearhistory")

	cfg := config.Load()
	if cfg.Database.DSN == "" {
		log.Fatal("no database DSN configured")
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := storage.NewPostgresRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		log.Fatalf("count history: %v", err)
	}
	if count == 0 {
		fmt.Println("history is already empty")
		return
	}

	fmt.Printf("about to delete %d history records, type 'yes' to confirm: ", count)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		log.Fatalf("read confirmation: %v", err)
	}
	if strings.TrimSpace(answer) != "yes" {
		fmt.Println("aborted")
		return
	}

	deleted, err := repo.Clear(ctx)
	if err != nil {
		log.Fatalf("clear history: %v", err)
	}
	fmt.Printf("deleted %d records\n", deleted)
}
