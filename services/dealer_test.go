package services

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/privmatch/matchnet/crypto"
	"github.com/privmatch/matchnet/mpc"
)

func startDealer(t *testing.T) (*Dealer, *httptest.Server) {
	t.Helper()

	dealer, err := NewDealer(nil)
	require.NoError(t, err)

	r := chi.NewRouter()
	dealer.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return dealer, srv
}

// Shares handed to the two parties must recombine into valid triples.
func TestDealerTriplesCorrelated(t *testing.T) {
	dealer, srv := startDealer(t)
	ctx := context.Background()
	field := crypto.TokenFieldOrder

	src0 := mpc.NewHTTPTripleSource(srv.URL, "run-1", 0, 16, field, nil)
	src1 := mpc.NewHTTPTripleSource(srv.URL, "run-1", 1, 16, field, nil)

	for i := 0; i < 20; i++ {
		t0, err := src0.Next(ctx)
		require.NoError(t, err)
		t1, err := src1.Next(ctx)
		require.NoError(t, err)

		x := crypto.FieldAddInplace(new(big.Int).Set(t0.X), t1.X, field)
		y := crypto.FieldAddInplace(new(big.Int).Set(t0.Y), t1.Y, field)
		z := crypto.FieldAddInplace(new(big.Int).Set(t0.Z), t1.Z, field)
		require.Zero(t, crypto.FieldMul(x, y, field).Cmp(z), "triple %d does not satisfy z = x*y", i)
	}

	served0, served1 := dealer.ServedTriples("run-1")
	require.Equal(t, 32, served0)
	require.Equal(t, 32, served1)
}

// Different runs must get independent triple streams.
func TestDealerRunsIndependent(t *testing.T) {
	_, srv := startDealer(t)
	ctx := context.Background()
	field := crypto.TokenFieldOrder

	a, err := mpc.NewHTTPTripleSource(srv.URL, "run-a", 0, 4, field, nil).Next(ctx)
	require.NoError(t, err)
	b, err := mpc.NewHTTPTripleSource(srv.URL, "run-b", 0, 4, field, nil).Next(ctx)
	require.NoError(t, err)

	require.NotZero(t, a.X.Cmp(b.X))
}

func TestDealerRejectsBadRequests(t *testing.T) {
	_, srv := startDealer(t)

	for name, req := range map[string]*mpc.TripleBatchRequest{
		"party out of range": {Party: 2, Count: 1},
		"zero count":         {Party: 0, Count: 0},
		"oversized batch":    {Party: 0, Count: maxTripleBatch + 1},
	} {
		body, err := json.Marshal(req)
		require.NoError(t, err)

		resp, err := http.Post(srv.URL+"/triples/run-1", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
	}
}

func TestDealerDeterministicFromSeed(t *testing.T) {
	seed := crypto.NewSharedKey(bytes.Repeat([]byte{7}, 32))

	d1, err := NewDealer(seed)
	require.NoError(t, err)
	d2, err := NewDealer(seed)
	require.NoError(t, err)

	r1, err := d1.run("run-1")
	require.NoError(t, err)
	r2, err := d2.run("run-1")
	require.NoError(t, err)

	ctx := context.Background()
	t1, err := r1.sources[0].Next(ctx)
	require.NoError(t, err)
	t2, err := r2.sources[0].Next(ctx)
	require.NoError(t, err)
	require.Zero(t, t1.X.Cmp(t2.X))
	require.Zero(t, t1.Z.Cmp(t2.Z))
}
