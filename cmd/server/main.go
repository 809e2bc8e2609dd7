package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ayushg31/whisp/internal/blob"
	"github.com/ayushg31/whisp/internal/config"
	"github.com/ayushg31/whisp/internal/database"
	"github.com/ayushg31/whisp/internal/presence"
	postgresrepo "github.com/ayushg31/whisp/internal/repository/postgres"
	"github.com/ayushg31/whisp/internal/service"
	"github.com/ayushg31/whisp/internal/transport/http/handlers"
	"github.com/ayushg31/whisp/internal/transport/http/middleware"
	"github.com/ayushg31/whisp/internal/transport/ws"
)

func main() {
	cfg := config.Load()

	// Database
	if err := database.Migrate(cfg); err != nil {
		log.Fatal(err)
	}
	pool, err := database.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()
	log.Println("Connected to database")

	// Repositories
	userRepo := postgresrepo.NewUserRepo(pool)
	messageRepo := postgresrepo.NewMessageRepo(pool)

	// Blob store collaborator
	uploader, err := blob.NewDiskUploader(cfg.UploadDir, cfg.BaseURL)
	if err != nil {
		log.Fatal(err)
	}

	// Presence + realtime
	registry := presence.NewRegistry()
	notifier := ws.NewRegistryNotifier(registry)

	// Services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret)
	chatService := service.NewChatService(messageRepo, userRepo)
	chatService.SetNotifier(notifier)

	hub := ws.NewHub(registry, chatService)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	messageHandler := handlers.NewMessageHandler(chatService, uploader)

	// Auth middleware
	auth := middleware.Auth(cfg.JWTSecret)

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.HandleFunc("POST /api/auth/signup", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	// Protected - Auth
	mux.Handle("GET /api/auth/check", auth(http.HandlerFunc(authHandler.Check)))
	mux.Handle("PUT /api/auth/update-profile", auth(http.HandlerFunc(authHandler.UpdateProfile)))

	// Protected - Messages
	mux.Handle("GET /api/messages/users", auth(http.HandlerFunc(messageHandler.Sidebar)))
	mux.Handle("GET /api/messages/{id}", auth(http.HandlerFunc(messageHandler.Conversation)))
	mux.Handle("POST /api/messages/send/{id}", auth(http.HandlerFunc(messageHandler.Send)))
	mux.Handle("POST /api/messages/send-doc", auth(http.HandlerFunc(messageHandler.SendDoc)))
	mux.Handle("POST /api/messages/send-video", auth(http.HandlerFunc(messageHandler.SendVideo)))
	mux.Handle("PUT /api/messages/mark/{id}", auth(http.HandlerFunc(messageHandler.MarkSeen)))
	mux.Handle("PUT /api/messages/mark-seen/{userId}", auth(http.HandlerFunc(messageHandler.MarkConversationSeen)))
	mux.Handle("DELETE /api/messages/{id}", auth(http.HandlerFunc(messageHandler.Delete)))

	// Realtime
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, cfg.JWTSecret))

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{Addr: addr, Handler: middleware.CORS(mux)}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}
