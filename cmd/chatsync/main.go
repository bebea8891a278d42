package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rdesai/chatsync/internal/auth"
	"github.com/rdesai/chatsync/internal/client"
	"github.com/rdesai/chatsync/internal/config"
	"github.com/rdesai/chatsync/internal/protocol"
	"github.com/rdesai/chatsync/internal/state"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token := cfg.Token
	store := state.New(cfg.ServerURL)

	if token == "" {
		if cfg.Username == "" {
			log.Fatal("no token and no credentials configured")
		}
		resp, err := auth.NewClient(cfg.ServerURL).Login(ctx, cfg.Username, cfg.Password)
		if err != nil {
			log.Fatalf("login: %v", err)
		}
		token = resp.Token
		store.SetCurrentUser(resp.User)
		log.Printf("logged in as %s", cfg.Username)
	}

	c := client.New(cfg, token, store, client.WithCallHandler(
		func(eventType string, p protocol.CallEventPayload) {
			log.Printf("call signaling: %s chat=%s from=%s channel=%s",
				eventType, p.ChatID, p.CallerID, p.Channel)
		},
	))

	log.Printf("connecting to %s", cfg.WebSocketURL)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("client: %v", err)
	}
	log.Println("shut down")
}
