package main

import (
	"errors"
	"log"

	"ecommerce-platform/internal/config"
	"ecommerce-platform/internal/database"
	"ecommerce-platform/internal/models"
	"ecommerce-platform/internal/repositories"
)

var sampleProducts = []models.ProductCreateRequest{
	{Title: "Wireless Mouse", Description: "Ergonomic 2.4GHz wireless mouse", Code: "MOUSE-001", Category: "peripherals", Price: 24.99, Stock: 120, Status: true},
	{Title: "Mechanical Keyboard", Description: "Tenkeyless keyboard with brown switches", Code: "KB-TKL-01", Category: "peripherals", Price: 89.90, Stock: 45, Status: true},
	{Title: "27\" Monitor", Description: "27 inch 1440p IPS display", Code: "MON-27-QHD", Category: "displays", Price: 299.00, Stock: 18, Status: true},
	{Title: "USB-C Hub", Description: "7-in-1 hub with HDMI and card reader", Code: "HUB-7IN1", Category: "accessories", Price: 39.50, Stock: 200, Status: true},
	{Title: "Laptop Stand", Description: "Adjustable aluminium laptop stand", Code: "STAND-ALU", Category: "accessories", Price: 31.00, Stock: 0, Status: true},
	{Title: "Webcam 1080p", Description: "Full HD webcam with privacy shutter", Code: "CAM-1080", Category: "peripherals", Price: 54.00, Stock: 60, Status: false},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	repo := repositories.NewProductRepository(db.DB)
	created := 0
	for i := range sampleProducts {
		req := sampleProducts[i]
		if _, err := repo.Create(&req); err != nil {
			if errors.Is(err, models.ErrDuplicateEntry) {
				log.Printf("Skipping %s: already seeded", req.Code)
				continue
			}
			log.Fatalf("Failed to seed %s: %v", req.Code, err)
		}
		created++
	}
	log.Printf("Seeded %d products", created)
}
