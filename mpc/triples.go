package mpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"github.com/privmatch/matchnet/crypto"
)

// Triple holds one party's additive shares of a Beaver multiplication triple
// (x, y, z) with z = x*y. Each triple is consumed by exactly one secure
// multiplication.
type Triple struct {
	X, Y, Z *big.Int
}

// TripleSource provides the correlated randomness for secure multiplication.
// Both parties must consume triples in the same order; the lockstep protocol
// guarantees that as long as both use sources derived from the same run seed.
type TripleSource interface {
	Next(ctx context.Context) (*Triple, error)
}

// SeededTripleSource derives one party's triple stream deterministically from
// a dealer seed. The dealer side uses the same derivation, so triples never
// need to be stored or transmitted eagerly.
//
// Derivation per triple: x0, x1, y0, y1, z0 are drawn from labeled field
// streams; z1 = (x0+x1)(y0+y1) - z0. Party 0 receives (x0, y0, z0), party 1
// receives (x1, y1, z1).
type SeededTripleSource struct {
	party int
	field *big.Int

	x0, x1, y0, y1, z0 *crypto.FieldStream
}

// NewSeededTripleSource creates the triple stream view for one party.
func NewSeededTripleSource(seed crypto.SharedKey, party int, field *big.Int) (*SeededTripleSource, error) {
	if party != 0 && party != 1 {
		return nil, fmt.Errorf("party index %d out of range", party)
	}

	s := &SeededTripleSource{party: party, field: field}
	for _, c := range []struct {
		label  string
		stream **crypto.FieldStream
	}{
		{"triples/x0", &s.x0},
		{"triples/x1", &s.x1},
		{"triples/y0", &s.y0},
		{"triples/y1", &s.y1},
		{"triples/z0", &s.z0},
	} {
		stream, err := crypto.NewFieldStream(seed, c.label, field)
		if err != nil {
			return nil, err
		}
		*c.stream = stream
	}
	return s, nil
}

// Next derives the party's next triple share.
func (s *SeededTripleSource) Next(ctx context.Context) (*Triple, error) {
	x0, x1 := s.x0.Next(), s.x1.Next()
	y0, y1 := s.y0.Next(), s.y1.Next()
	z0 := s.z0.Next()

	if s.party == 0 {
		return &Triple{X: x0, Y: y0, Z: z0}, nil
	}

	x := crypto.FieldAddInplace(new(big.Int).Set(x0), x1, s.field)
	y := crypto.FieldAddInplace(new(big.Int).Set(y0), y1, s.field)
	z1 := crypto.FieldSubInplace(crypto.FieldMul(x, y, s.field), z0, s.field)
	return &Triple{X: x1, Y: y1, Z: z1}, nil
}

// TripleBatchRequest asks the dealer for this party's next batch of triples.
type TripleBatchRequest struct {
	Party int `json:"party"`
	Count int `json:"count"`
}

// TripleBatchResponse carries hex-encoded (x, y, z) share rows.
type TripleBatchResponse struct {
	Triples [][3]string `json:"triples"`
}

// HTTPTripleSource fetches triple batches from the helper party's dealer
// service. The dealer hands each party only its own shares; batches are
// served strictly in stream order.
type HTTPTripleSource struct {
	dealerURL string
	runID     string
	party     int
	batchSize int
	field     *big.Int
	client    *http.Client

	buf []*Triple
}

// NewHTTPTripleSource creates a batching dealer client for one run.
func NewHTTPTripleSource(dealerURL, runID string, party int, batchSize int, field *big.Int, client *http.Client) *HTTPTripleSource {
	if client == nil {
		client = http.DefaultClient
	}
	if batchSize <= 0 {
		batchSize = 256
	}
	return &HTTPTripleSource{
		dealerURL: dealerURL,
		runID:     runID,
		party:     party,
		batchSize: batchSize,
		field:     field,
		client:    client,
	}
}

// Next returns the next triple, fetching a fresh batch when the buffer runs dry.
func (s *HTTPTripleSource) Next(ctx context.Context) (*Triple, error) {
	if len(s.buf) == 0 {
		if err := s.fetchBatch(ctx); err != nil {
			return nil, err
		}
	}

	t := s.buf[0]
	s.buf = s.buf[1:]
	return t, nil
}

func (s *HTTPTripleSource) fetchBatch(ctx context.Context) error {
	body, err := json.Marshal(&TripleBatchRequest{Party: s.party, Count: s.batchSize})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolAbort, err)
	}

	url := fmt.Sprintf("%s/triples/%s", s.dealerURL, s.runID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolAbort, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: fetch triples: %v", ErrProtocolAbort, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: dealer returned status %d", ErrProtocolAbort, resp.StatusCode)
	}

	var batch TripleBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return fmt.Errorf("%w: decode triples: %v", ErrProtocolAbort, err)
	}

	for i, row := range batch.Triples {
		t := &Triple{}
		for j, dst := range []**big.Int{&t.X, &t.Y, &t.Z} {
			el, ok := new(big.Int).SetString(row[j], 16)
			if !ok || el.Sign() < 0 || el.Cmp(s.field) >= 0 {
				return fmt.Errorf("%w: triple %d component %d invalid", ErrProtocolAbort, i, j)
			}
			*dst = el
		}
		s.buf = append(s.buf, t)
	}
	if len(s.buf) == 0 {
		return fmt.Errorf("%w: dealer returned empty batch", ErrProtocolAbort)
	}
	return nil
}
