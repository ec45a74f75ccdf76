package mpc

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/privmatch/matchnet/crypto"
)

func testEngines(t *testing.T) (*Engine, *Engine) {
	t.Helper()

	ta, tb := NewLoopbackPair()
	t.Cleanup(func() { ta.Close(); tb.Close() })

	seed := crypto.NewSharedKey([]byte("engine-test-seed"))
	s0, err := NewSeededTripleSource(seed, 0, crypto.TokenFieldOrder)
	require.NoError(t, err)
	s1, err := NewSeededTripleSource(seed, 1, crypto.TokenFieldOrder)
	require.NoError(t, err)

	e0, err := NewEngine(crypto.TokenFieldOrder, 0, ta, s0)
	require.NoError(t, err)
	e1, err := NewEngine(crypto.TokenFieldOrder, 1, tb, s1)
	require.NoError(t, err)
	return e0, e1
}

// runBoth drives both parties of a run concurrently, as two processes would.
func runBoth(t *testing.T, f0, f1 func(ctx context.Context) error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, f := range []func(context.Context) error{f0, f1} {
		wg.Add(1)
		go func(i int, f func(context.Context) error) {
			defer wg.Done()
			errs[i] = f(ctx)
		}(i, f)
	}
	wg.Wait()

	require.NoError(t, errs[0], "party 0")
	require.NoError(t, errs[1], "party 1")
}

func TestShareAndReveal(t *testing.T) {
	e0, e1 := testEngines(t)
	secret := big.NewInt(424242)

	results := make([]*big.Int, 2)
	party := func(e *Engine, idx int) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			var values []*big.Int
			if e.Party() == 0 {
				values = []*big.Int{new(big.Int).Set(secret)}
			}
			shares, err := e.ShareVector(ctx, 0, values, 1)
			if err != nil {
				return err
			}
			results[idx], err = e.Reveal(ctx, shares[0])
			return err
		}
	}
	runBoth(t, party(e0, 0), party(e1, 1))

	require.Zero(t, results[0].Cmp(secret))
	require.Zero(t, results[1].Cmp(secret))
}

func TestSharesHideTheValue(t *testing.T) {
	e0, e1 := testEngines(t)
	secret := big.NewInt(7)

	var share0, share1 SharedValue
	runBoth(t,
		func(ctx context.Context) error {
			shares, err := e0.ShareVector(ctx, 0, []*big.Int{new(big.Int).Set(secret)}, 1)
			if err != nil {
				return err
			}
			share0 = shares[0]
			return nil
		},
		func(ctx context.Context) error {
			shares, err := e1.ShareVector(ctx, 0, nil, 1)
			if err != nil {
				return err
			}
			share1 = shares[0]
			return nil
		},
	)

	// Neither share equals the secret, but they reconstruct it.
	require.NotZero(t, share0.shareValue().Cmp(secret))
	sum := crypto.FieldAddInplace(new(big.Int).Set(share0.shareValue()), share1.shareValue(), crypto.TokenFieldOrder)
	require.Zero(t, sum.Cmp(secret))
}

func TestMul(t *testing.T) {
	e0, e1 := testEngines(t)

	a := big.NewInt(123456789)
	b := big.NewInt(987654321)
	expected := new(big.Int).Mul(a, b)

	results := make([]*big.Int, 2)
	party := func(e *Engine, idx int) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			var aVals, bVals []*big.Int
			if e.Party() == 0 {
				aVals = []*big.Int{new(big.Int).Set(a)}
			} else {
				bVals = []*big.Int{new(big.Int).Set(b)}
			}

			aShares, err := e.ShareVector(ctx, 0, aVals, 1)
			if err != nil {
				return err
			}
			bShares, err := e.ShareVector(ctx, 1, bVals, 1)
			if err != nil {
				return err
			}

			prod, err := e.Mul(ctx, aShares[0], bShares[0])
			if err != nil {
				return err
			}
			results[idx], err = e.Reveal(ctx, prod)
			return err
		}
	}
	runBoth(t, party(e0, 0), party(e1, 1))

	require.Zero(t, results[0].Cmp(expected))
	require.Zero(t, results[1].Cmp(expected))
}

func TestEqualIndicator(t *testing.T) {
	cases := []struct {
		name     string
		a, b     int64
		expected int64
	}{
		{"equal", 1337, 1337, 1},
		{"unequal", 1337, 1338, 0},
		{"both zero", 0, 0, 1},
		{"zero vs nonzero", 0, 5, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e0, e1 := testEngines(t)

			results := make([]*big.Int, 2)
			party := func(e *Engine, idx int) func(ctx context.Context) error {
				return func(ctx context.Context) error {
					var aVals, bVals []*big.Int
					if e.Party() == 0 {
						aVals = []*big.Int{big.NewInt(tc.a)}
					} else {
						bVals = []*big.Int{big.NewInt(tc.b)}
					}

					aShares, err := e.ShareVector(ctx, 0, aVals, 1)
					if err != nil {
						return err
					}
					bShares, err := e.ShareVector(ctx, 1, bVals, 1)
					if err != nil {
						return err
					}

					eq, err := e.Equal(ctx, aShares[0], bShares[0])
					if err != nil {
						return err
					}
					results[idx], err = e.Reveal(ctx, eq)
					return err
				}
			}
			runBoth(t, party(e0, 0), party(e1, 1))

			require.Zero(t, results[0].Cmp(big.NewInt(tc.expected)))
			require.Zero(t, results[1].Cmp(big.NewInt(tc.expected)))
		})
	}
}

func TestSumIsLocal(t *testing.T) {
	e0, e1 := testEngines(t)

	values := []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)}
	results := make([]*big.Int, 2)
	party := func(e *Engine, idx int) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			var vals []*big.Int
			if e.Party() == 0 {
				vals = values
			}
			shares, err := e.ShareVector(ctx, 0, vals, 3)
			if err != nil {
				return err
			}
			var err2 error
			results[idx], err2 = e.Reveal(ctx, e.Sum(shares))
			return err2
		}
	}
	runBoth(t, party(e0, 0), party(e1, 1))

	require.Zero(t, results[0].Cmp(big.NewInt(6)))
	require.Zero(t, results[1].Cmp(big.NewInt(6)))
}

func TestSumOfNothingIsZero(t *testing.T) {
	e0, _ := testEngines(t)
	require.Zero(t, e0.Sum(nil).shareValue().Sign())
}

func TestShareVectorRejectsOutOfField(t *testing.T) {
	e0, e1 := testEngines(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e1.ShareVector(ctx, 0, nil, 1)
	}()

	_, err := e0.ShareVector(ctx, 0, []*big.Int{new(big.Int).Set(crypto.TokenFieldOrder)}, 1)
	require.ErrorIs(t, err, ErrProtocolAbort)
	cancel()
	<-done
}

func TestCancellationAborts(t *testing.T) {
	e0, _ := testEngines(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The counterpart never shows up; the cancelled context aborts the run.
	_, err := e0.ShareVector(ctx, 1, nil, 1)
	require.ErrorIs(t, err, ErrProtocolAbort)
}
