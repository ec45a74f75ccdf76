// Command party runs one data party of a private matching run.
//
// The party reads its identifier column from a CSV file, waits for the
// counterpart and the dealer to come up, executes the protocol, and prints
// the match count, the run's only plaintext output, on stdout.
//
// # Usage
//
//	go run ./cmd/party --config party0.yaml
//
// The YAML config names the peer and dealer URLs, the run ID, the public
// capacity parameters, and the dataset location. An optional postgres block
// enables persistent run records.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/privmatch/matchnet/cmd/common"
	"github.com/privmatch/matchnet/ingest"
	"github.com/privmatch/matchnet/match"
	"github.com/privmatch/matchnet/mpc"
	"github.com/privmatch/matchnet/services"
)

func main() {
	var (
		configPath    = flag.String("config", "", "Party YAML configuration file")
		addr          = flag.String("addr", ":8080", "HTTP listen address")
		signingKeyHex = flag.String("signing-key", "", "Ed25519 signing key (hex, generates if empty)")
		runTimeout    = flag.Duration("run-timeout", 30*time.Minute, "Overall run deadline")
	)
	flag.Parse()

	if *configPath == "" {
		fmt.Println("Error: --config is required")
		os.Exit(1)
	}

	cfg, err := common.LoadPartyConfig(*configPath)
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
		fmt.Printf("Generated run ID: %s\n", cfg.RunID)
	}

	signingKey, err := common.LoadOrGenerateSigningKey(*signingKeyHex)
	if err != nil {
		fmt.Printf("Signing key error: %v\n", err)
		os.Exit(1)
	}
	pubKey, _ := signingKey.PublicKey()
	fmt.Printf("Party %d public key: %s\n", cfg.PartyIndex, pubKey.String())

	var store services.RunStore
	if cfg.Postgres != nil {
		store, err = services.NewPostgresRunStore(cfg.Postgres)
		if err != nil {
			fmt.Printf("Postgres error: %v\n", err)
			os.Exit(1)
		}
	} else {
		store = services.NewMemoryRunStore()
	}
	defer store.Close()

	party, err := services.NewHTTPParty(&services.PartyConfig{
		Match: match.Config{
			PartyIndex: cfg.PartyIndex,
			PartyCount: 3,
			Capacity:   cfg.Capacity,
		},
		RunID:         cfg.RunID,
		PeerURL:       cfg.PeerURL,
		DealerURL:     cfg.DealerURL,
		PeerPublicKey: cfg.PeerPublicKey,
		DeclaredBound: cfg.DeclaredBound,
		Margin:        cfg.Margin,
		TripleBatch:   cfg.TripleBatch,
	}, signingKey, store)
	if err != nil {
		fmt.Printf("Create party error: %v\n", err)
		os.Exit(1)
	}
	defer party.Close()

	raws, err := ingest.ReadColumn(cfg.Dataset.Path, cfg.Dataset.Column)
	if err != nil {
		fmt.Printf("Dataset error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d identifiers from %s\n", len(raws), cfg.Dataset.Path)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	party.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx, cancel := context.WithTimeout(ctx, *runTimeout)
	defer cancel()

	for _, dep := range []string{cfg.DealerURL, cfg.PeerURL} {
		if err := common.WaitForService(runCtx, dep); err != nil {
			fmt.Printf("Dependency not ready: %v\n", err)
			os.Exit(1)
		}
	}

	count, err := party.RunMatch(runCtx, raws)
	if err != nil {
		if errors.Is(err, mpc.ErrProtocolAbort) {
			fmt.Printf("Run aborted: %v\n", err)
		} else {
			fmt.Printf("Run failed: %v\n", err)
		}
		shutdown(httpServer)
		os.Exit(1)
	}

	fmt.Println(count)
	shutdown(httpServer)
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
