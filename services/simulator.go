package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/privmatch/matchnet/crypto"
	"github.com/privmatch/matchnet/match"
	"github.com/privmatch/matchnet/mpc"
	"github.com/privmatch/matchnet/token"
)

// SimulatorConfig configures a single-process simulation run.
type SimulatorConfig struct {
	// Capacity fixes the padding bound. Zero means derive it from the larger
	// dataset plus Margin.
	Capacity int
	Margin   int
}

// LocalSimulator runs both data parties of a matching run inside one process,
// connected by the in-process transport and fed from one dealer seed. It is
// the fastest way to exercise the full protocol and the reference the
// networked deployment is checked against.
type LocalSimulator struct {
	cfg *SimulatorConfig
}

// NewLocalSimulator creates a simulator.
func NewLocalSimulator(cfg *SimulatorConfig) *LocalSimulator {
	if cfg == nil {
		cfg = &SimulatorConfig{}
	}
	return &LocalSimulator{cfg: cfg}
}

// Run matches two raw identifier lists and returns the match count both
// simulated parties revealed. A count disagreement between the two simulated
// parties is reported as a protocol abort.
func (s *LocalSimulator) Run(ctx context.Context, rawsA, rawsB []string) (int, error) {
	tokensA, err := token.NormalizeAll(rawsA)
	if err != nil {
		return 0, fmt.Errorf("party %d inputs: %w", match.PartyA, err)
	}
	tokensB, err := token.NormalizeAll(rawsB)
	if err != nil {
		return 0, fmt.Errorf("party %d inputs: %w", match.PartyB, err)
	}

	capacity := s.cfg.Capacity
	if capacity <= 0 {
		capacity = max(len(tokensA), len(tokensB), 1) + s.cfg.Margin
	}

	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return 0, fmt.Errorf("generating dealer seed: %w", err)
	}

	trA, trB := mpc.NewLoopbackPair()
	defer trA.Close()
	defer trB.Close()

	tokens := [2][]token.Token{tokensA, tokensB}
	transports := [2]mpc.PairTransport{trA, trB}

	counts := make(chan int, 2)
	errs := make(chan error, 2)

	for party := 0; party < 2; party++ {
		go func(party int) {
			count, err := s.runParty(ctx, party, tokens[party], capacity, transports[party], crypto.NewSharedKey(seed))
			if err != nil {
				errs <- fmt.Errorf("party %d: %w", party, err)
				return
			}
			counts <- count
		}(party)
	}

	results := make([]int, 0, 2)
	for len(results) < 2 {
		select {
		case count := <-counts:
			results = append(results, count)
		case err := <-errs:
			return 0, err
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: %v", mpc.ErrProtocolAbort, ctx.Err())
		}
	}

	if results[0] != results[1] {
		return 0, fmt.Errorf("%w: parties revealed different counts %d and %d",
			mpc.ErrProtocolAbort, results[0], results[1])
	}
	return results[0], nil
}

func (s *LocalSimulator) runParty(ctx context.Context, party int, tokens []token.Token, capacity int, tr mpc.PairTransport, seed crypto.SharedKey) (int, error) {
	padded, err := token.Pad(tokens, capacity, party)
	if err != nil {
		return 0, err
	}

	triples, err := mpc.NewSeededTripleSource(seed, party, crypto.TokenFieldOrder)
	if err != nil {
		return 0, err
	}
	engine, err := mpc.NewEngine(crypto.TokenFieldOrder, party, tr, triples)
	if err != nil {
		return 0, err
	}

	cfg := &match.Config{PartyIndex: party, PartyCount: 2, Capacity: capacity}
	matcher, err := match.NewMatcher(cfg, match.NewEngineSharer(engine))
	if err != nil {
		return 0, err
	}
	return matcher.Run(ctx, padded)
}

// StackConfig configures a full loopback-interface deployment.
type StackConfig struct {
	// RunID identifies the run; empty means generate one.
	RunID string

	// Capacity, DeclaredBounds and Margin feed the parties' capacity
	// negotiation. A non-zero Capacity fixes the bound for both parties.
	Capacity       int
	DeclaredBounds [2]int
	Margin         int
}

// Stack is a complete networked deployment on the loopback interface: a
// dealer service and both party services, each behind its own HTTP server.
// Tests and the local simulator binary use it to exercise the exact wire
// paths of a production deployment.
type Stack struct {
	RunID string

	Dealer  *Dealer
	Parties [2]*HTTPParty

	servers   []*http.Server
	listeners []net.Listener
}

// NewStack deploys the dealer and both parties on ephemeral loopback ports.
// The caller must Shutdown the stack when done.
func NewStack(cfg *StackConfig) (*Stack, error) {
	if cfg == nil {
		cfg = &StackConfig{}
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	stack := &Stack{RunID: runID}

	listeners := make([]net.Listener, 3)
	urls := make([]string, 3)
	for i := range listeners {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			stack.Shutdown(context.Background())
			return nil, fmt.Errorf("listening: %w", err)
		}
		listeners[i] = ln
		urls[i] = "http://" + ln.Addr().String()
		stack.listeners = append(stack.listeners, ln)
	}
	dealerLn, dealerURL := listeners[2], urls[2]

	dealer, err := NewDealer(nil)
	if err != nil {
		stack.Shutdown(context.Background())
		return nil, err
	}
	stack.Dealer = dealer
	stack.serve(dealerLn, func(r chi.Router) { dealer.RegisterRoutes(r) })

	for party := 0; party < 2; party++ {
		_, signingKey, err := crypto.GenerateKeyPair()
		if err != nil {
			stack.Shutdown(context.Background())
			return nil, err
		}

		partyCfg := &PartyConfig{
			Match: match.Config{
				PartyIndex: party,
				PartyCount: 3,
				Capacity:   cfg.Capacity,
			},
			RunID:         runID,
			PeerURL:       urls[1-party],
			DealerURL:     dealerURL,
			DeclaredBound: cfg.DeclaredBounds[party],
			Margin:        cfg.Margin,
		}
		p, err := NewHTTPParty(partyCfg, signingKey, NewMemoryRunStore())
		if err != nil {
			stack.Shutdown(context.Background())
			return nil, err
		}
		stack.Parties[party] = p
		stack.serve(listeners[party], func(r chi.Router) { p.RegisterRoutes(r) })
	}

	return stack, nil
}

func (s *Stack) serve(ln net.Listener, mount func(chi.Router)) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	mount(r)

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	s.servers = append(s.servers, srv)
	go srv.Serve(ln)
}

// Run triggers both parties concurrently and returns the agreed match count.
func (s *Stack) Run(ctx context.Context, rawsA, rawsB []string) (int, error) {
	raws := [2][]string{rawsA, rawsB}

	counts := make(chan int, 2)
	errs := make(chan error, 2)
	for party := 0; party < 2; party++ {
		go func(party int) {
			count, err := s.Parties[party].RunMatch(ctx, raws[party])
			if err != nil {
				errs <- fmt.Errorf("party %d: %w", party, err)
				return
			}
			counts <- count
		}(party)
	}

	results := make([]int, 0, 2)
	for len(results) < 2 {
		select {
		case count := <-counts:
			results = append(results, count)
		case err := <-errs:
			return 0, err
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: %v", mpc.ErrProtocolAbort, ctx.Err())
		}
	}

	if results[0] != results[1] {
		return 0, fmt.Errorf("%w: parties revealed different counts %d and %d",
			mpc.ErrProtocolAbort, results[0], results[1])
	}
	return results[0], nil
}

// Shutdown stops all servers and closes the parties' transports.
func (s *Stack) Shutdown(ctx context.Context) {
	for _, p := range s.Parties {
		if p != nil {
			p.Close()
		}
	}
	for _, srv := range s.servers {
		srv.Shutdown(ctx)
	}
	for _, ln := range s.listeners {
		ln.Close()
	}
}
