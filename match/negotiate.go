package match

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/privmatch/matchnet/mpc"
)

// helloSeq is the reserved pre-protocol step. Engine steps start at 1.
const helloSeq = 0

type helloPayload struct {
	SessionTag    string `json:"session_tag"`
	DeclaredBound int    `json:"declared_bound"`
	Margin        int    `json:"margin"`
}

// NegotiateCapacity agrees the public padding capacity with the counterpart
// before any sharing happens. Each party declares a public upper bound of its
// own choosing (the true dataset size stays hidden up to that bound) and a
// safety margin; the run adopts the maximum of both declarations plus the
// maximum of both margins. Margins travel in the hello so both parties land
// on the same capacity even when configured differently, instead of
// desyncing at the first sharing step.
//
// The exchange doubles as a session check: both parties derive the session
// tag from the handshake secret, so mismatched runs abort here, cheaply,
// before any cryptographic material is spent.
func NegotiateCapacity(ctx context.Context, tr mpc.PairTransport, sessionTag []byte, declaredBound, margin int) (int, error) {
	if declaredBound <= 0 {
		return 0, fmt.Errorf("declared bound must be positive, got %d", declaredBound)
	}
	if margin < 0 {
		return 0, fmt.Errorf("margin must not be negative, got %d", margin)
	}

	payload, err := json.Marshal(&helloPayload{
		SessionTag:    hex.EncodeToString(sessionTag),
		DeclaredBound: declaredBound,
		Margin:        margin,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", mpc.ErrProtocolAbort, err)
	}

	peerPayload, err := tr.Exchange(ctx, helloSeq, payload)
	if err != nil {
		return 0, err
	}

	var peer helloPayload
	if err := json.Unmarshal(peerPayload, &peer); err != nil {
		return 0, fmt.Errorf("%w: malformed hello: %v", mpc.ErrProtocolAbort, err)
	}

	peerTag, err := hex.DecodeString(peer.SessionTag)
	if err != nil || subtle.ConstantTimeCompare(peerTag, sessionTag) != 1 {
		return 0, fmt.Errorf("%w: session tag mismatch", mpc.ErrProtocolAbort)
	}
	if peer.DeclaredBound <= 0 {
		return 0, fmt.Errorf("%w: counterpart declared bound %d", mpc.ErrProtocolAbort, peer.DeclaredBound)
	}
	if peer.Margin < 0 {
		return 0, fmt.Errorf("%w: counterpart declared margin %d", mpc.ErrProtocolAbort, peer.Margin)
	}

	return max(declaredBound, peer.DeclaredBound) + max(margin, peer.Margin), nil
}
