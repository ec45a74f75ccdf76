package services

import (
	"encoding/json"
	"errors"

	"github.com/privmatch/matchnet/crypto"
)

// Signed provides authentication for service-level messages.
// Security: Uses Ed25519 signatures. Assumes private keys are secure.
// Note: Signature covers serialized object + public key to prevent substitution.
type Signed[T any] struct {
	PublicKey crypto.PublicKey `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
	Object    *T               `json:"object"`
}

// NewSigned creates a signed message.
func NewSigned[T any](privkey crypto.PrivateKey, obj *T) (*Signed[T], error) {
	pubkey, err := privkey.PublicKey()
	if err != nil {
		return nil, err
	}

	serialized, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}

	signature, err := crypto.Sign(privkey, append(serialized, pubkey...))
	if err != nil {
		return nil, err
	}

	return &Signed[T]{
		PublicKey: pubkey,
		Signature: signature,
		Object:    obj,
	}, nil
}

// UnsafeObject returns the object without signature verification.
func (s *Signed[T]) UnsafeObject() *T {
	return s.Object
}

// Recover verifies the signature and returns the object and signer's public key.
func (s *Signed[T]) Recover() (*T, crypto.PublicKey, error) {
	serialized, err := json.Marshal(s.Object)
	if err != nil {
		return nil, nil, err
	}

	if !s.Signature.Verify(s.PublicKey, append(serialized, s.PublicKey...)) {
		return nil, nil, errors.New("signature not valid")
	}

	return s.Object, s.PublicKey, nil
}
