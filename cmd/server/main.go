package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/sessions"

	"ecommerce-platform/internal/config"
	"ecommerce-platform/internal/database"
	"ecommerce-platform/internal/handlers"
	"ecommerce-platform/internal/middleware"
	"ecommerce-platform/internal/repositories"
	"ecommerce-platform/internal/server"
	"ecommerce-platform/internal/services"
)

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

	// Repositories
	productRepo := repositories.NewProductRepository(db.DB)
	cartRepo := repositories.NewCartRepository(db.DB)
	ticketRepo := repositories.NewTicketRepository(db.DB)
	userRepo := repositories.NewUserRepository(db.DB)

	// Notification channels, falling back to logging mocks without creds
	emailService := services.NewMockEmailService(&cfg.Resend)
	smsService := services.NewMockSMSService(&cfg.Twilio)

	// Payment gateway
	var gateway services.PaymentGateway
	if cfg.MercadoPago.AccessToken != "" {
		success, failure, pending, webhook := cfg.Server.PaymentURLs()
		gateway = services.NewMercadoPagoService(services.MercadoPagoConfig{
			AccessToken: cfg.MercadoPago.AccessToken,
			PublicKey:   cfg.MercadoPago.PublicKey,
			Currency:    cfg.MercadoPago.Currency,
			SuccessURL:  success,
			FailureURL:  failure,
			PendingURL:  pending,
			WebhookURL:  webhook,
		})
		log.Println("Payment gateway: Using MercadoPago API")
	} else {
		gateway = services.NewMockPaymentGateway()
		log.Println("Payment gateway: Using mock (no MercadoPago access token provided)")
	}

	// Services
	purchaseService := services.NewPurchaseService(productRepo, cartRepo, ticketRepo, userRepo, emailService, smsService, cfg.Server.AdminPhone)
	productService := services.NewProductService(productRepo)
	cartService := services.NewCartService(cartRepo, productRepo)
	ticketService := services.NewTicketService(ticketRepo)
	authService := services.NewAuthService(userRepo, cartRepo)
	checkoutService := services.NewCheckoutService(cartService, ticketRepo, productRepo, gateway)

	// Sessions
	store := sessions.NewCookieStore([]byte(cfg.Session.Secret))
	store.Options.MaxAge = cfg.Session.MaxAge
	store.Options.HttpOnly = cfg.Session.HTTPOnly
	store.Options.Secure = cfg.Session.Secure
	store.Options.SameSite = http.SameSiteLaxMode
	sessionMiddleware := middleware.NewAuthMiddleware(authService, store)

	router := server.NewRouter(server.Handlers{
		Auth:     handlers.NewAuthHandler(authService, sessionMiddleware),
		Products: handlers.NewProductHandler(productService),
		Carts:    handlers.NewCartHandler(cartService, purchaseService, checkoutService),
		Tickets:  handlers.NewTicketHandler(ticketService),
		Payments: handlers.NewPaymentHandler(gateway, purchaseService),
		Sessions: sessionMiddleware,
	})

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
