package main

import (
	"context"
	"flag"
	"net/http"

	"go.uber.org/zap"

	"github.com/zmagdon/watchparty/internal/roomserver"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	log := zap.Must(zap.NewProduction())
	defer func() { _ = log.Sync() }()

	hub := roomserver.NewHub(context.Background(), log)
	handler := roomserver.SetupRoutes(hub)

	log.Info("listening", zap.String("addr", *addr))
	if err := http.ListenAndServe(*addr, handler); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
