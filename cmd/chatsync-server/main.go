package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/rdesai/chatsync/internal/config"
	"github.com/rdesai/chatsync/internal/server"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	router, _, _ := server.NewRouter(cfg.CORSOrigins)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("chatsync dev server listening on %s (origins: %v)", addr, cfg.CORSOrigins)
	log.Fatal(http.ListenAndServe(addr, router))
}
