package mpc

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/privmatch/matchnet/crypto"
)

func TestSeededTriplesReconstruct(t *testing.T) {
	seed := crypto.NewSharedKey([]byte("triple-seed"))
	field := crypto.TokenFieldOrder

	s0, err := NewSeededTripleSource(seed, 0, field)
	require.NoError(t, err)
	s1, err := NewSeededTripleSource(seed, 1, field)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		t0, err := s0.Next(ctx)
		require.NoError(t, err)
		t1, err := s1.Next(ctx)
		require.NoError(t, err)

		x := crypto.FieldAddInplace(new(big.Int).Set(t0.X), t1.X, field)
		y := crypto.FieldAddInplace(new(big.Int).Set(t0.Y), t1.Y, field)
		z := crypto.FieldAddInplace(new(big.Int).Set(t0.Z), t1.Z, field)
		require.Zero(t, z.Cmp(crypto.FieldMul(x, y, field)), "triple %d does not reconstruct", i)
	}
}

func TestSeededTriplesDifferAcrossRuns(t *testing.T) {
	field := crypto.TokenFieldOrder
	a, err := NewSeededTripleSource(crypto.NewSharedKey([]byte("run-a")), 0, field)
	require.NoError(t, err)
	b, err := NewSeededTripleSource(crypto.NewSharedKey([]byte("run-b")), 0, field)
	require.NoError(t, err)

	ta, _ := a.Next(context.Background())
	tb, _ := b.Next(context.Background())
	require.NotZero(t, ta.X.Cmp(tb.X))
}

func TestHTTPTripleSource(t *testing.T) {
	seed := crypto.NewSharedKey([]byte("dealer-seed"))
	field := crypto.TokenFieldOrder

	// Minimal dealer: serve party views derived from the run seed.
	sources := map[int]*SeededTripleSource{}
	for party := 0; party <= 1; party++ {
		s, err := NewSeededTripleSource(seed, party, field)
		require.NoError(t, err)
		sources[party] = s
	}

	r := chi.NewRouter()
	r.Post("/triples/{run_id}", func(w http.ResponseWriter, req *http.Request) {
		var batch TripleBatchRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&batch))

		resp := TripleBatchResponse{}
		for i := 0; i < batch.Count; i++ {
			tr, err := sources[batch.Party].Next(req.Context())
			require.NoError(t, err)
			resp.Triples = append(resp.Triples, [3]string{tr.X.Text(16), tr.Y.Text(16), tr.Z.Text(16)})
		}
		json.NewEncoder(w).Encode(&resp)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	// Client batches must reproduce the dealer stream in order.
	want, err := NewSeededTripleSource(seed, 0, field)
	require.NoError(t, err)
	client := NewHTTPTripleSource(srv.URL, "run-x", 0, 8, field, nil)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		expected, err := want.Next(ctx)
		require.NoError(t, err)
		got, err := client.Next(ctx)
		require.NoError(t, err)
		require.Zero(t, got.X.Cmp(expected.X))
		require.Zero(t, got.Y.Cmp(expected.Y))
		require.Zero(t, got.Z.Cmp(expected.Z))
	}
}

func TestHTTPTripleSourceDealerDown(t *testing.T) {
	client := NewHTTPTripleSource("http://127.0.0.1:1", "run-x", 0, 8, crypto.TokenFieldOrder, nil)
	_, err := client.Next(context.Background())
	require.ErrorIs(t, err, ErrProtocolAbort)
}
