// Command dealer runs the helper party's triple dealer service.
//
// The dealer derives Beaver triple shares for both data parties from a
// per-run seed and hands each party only its own shares. It contributes
// correlated randomness and nothing else: no tokens, no shares of tokens,
// and no match counts ever reach it.
//
// # Usage
//
//	go run ./cmd/dealer --addr :8082
//
// A fixed --seed keeps triple streams stable across restarts; without it a
// fresh random master seed is generated, which is right for most runs.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/privmatch/matchnet/crypto"
	"github.com/privmatch/matchnet/services"
)

func main() {
	var (
		addr    = flag.String("addr", ":8082", "HTTP listen address")
		seedHex = flag.String("seed", "", "Master seed (hex, generates if empty)")
	)
	flag.Parse()

	var seed crypto.SharedKey
	if *seedHex != "" {
		raw, err := hex.DecodeString(*seedHex)
		if err != nil || len(raw) < 16 {
			fmt.Println("Error: --seed must be at least 16 hex-encoded bytes")
			os.Exit(1)
		}
		seed = crypto.NewSharedKey(raw)
	}

	dealer, err := services.NewDealer(seed)
	if err != nil {
		fmt.Printf("Create dealer error: %v\n", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	dealer.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		fmt.Printf("Dealer listening on %s\n", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)
}
