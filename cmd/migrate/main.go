package main

import (
	"flag"
	"log"

	"ecommerce-platform/internal/config"
	"ecommerce-platform/internal/database"
)

func main() {
	status := flag.Bool("status", false, "show migration status instead of applying")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrator := database.NewMigrator(db.DB)
	if *status {
		if err := migrator.Status(); err != nil {
			log.Fatalf("Failed to read migration status: %v", err)
		}
		return
	}

	if err := migrator.Run(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations complete")
}
