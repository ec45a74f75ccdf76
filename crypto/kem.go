package crypto

import (
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// KemPublicKey represents a public key for key encapsulation
type KemPublicKey [32]byte

// KemPrivateKey represents a private key for key encapsulation
type KemPrivateKey [32]byte

// GenerateKemKeyPair generates a new X25519 key pair for key exchange
func GenerateKemKeyPair() (KemPublicKey, KemPrivateKey, error) {
	var privKey KemPrivateKey
	var pubKey KemPublicKey

	if _, err := rand.Read(privKey[:]); err != nil {
		return pubKey, privKey, err
	}

	curve25519.ScalarBaseMult((*[32]byte)(&pubKey), (*[32]byte)(&privKey))
	return pubKey, privKey, nil
}

// DeriveSharedSecret performs X25519 key agreement and derives a shared secret
// bound to the given info string via HKDF. Both parties of a run derive the
// same secret from their own private key and the counterpart's public key.
func DeriveSharedSecret(privateKey KemPrivateKey, publicKey KemPublicKey, info []byte) (SharedKey, error) {
	var sharedPoint [32]byte
	curve25519.ScalarMult(&sharedPoint, (*[32]byte)(&privateKey), (*[32]byte)(&publicKey))

	hkdf := hkdf.New(sha256.New, sharedPoint[:], nil, info)
	secret := make([]byte, 32)
	if _, err := hkdf.Read(secret); err != nil {
		return nil, err
	}

	return SharedKey(secret), nil
}

// DeriveSubKey expands a shared key into a labeled sub-key. Used to derive
// the session tag and the per-run transcript binding from the handshake
// secret without ever using the secret directly.
func DeriveSubKey(secret SharedKey, label string) (SharedKey, error) {
	hkdf := hkdf.New(sha256.New, secret, nil, []byte(label))
	out := make([]byte, 32)
	if _, err := hkdf.Read(out); err != nil {
		return nil, err
	}
	return SharedKey(out), nil
}
