/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sig

import (
	"crypto/ed25519"
	"crypto/rand"
	"sync"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/platform/view/services/registry"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

// Signer is an interface which wraps the Sign method.
type Signer interface {
	// Sign signs message bytes and returns the signature or an error on failure.
	Sign(message []byte) ([]byte, error)
}

// Verifier is an interface which wraps the Verify method.
type Verifier interface {
	// Verify verifies the signature over the passed message.
	Verify(message, sigma []byte) error
}

// Service is a repository of sign keys.
// Identities are ed25519 public keys, so a verifier can be derived from any
// identity without prior registration.
type Service struct {
	mu      sync.RWMutex
	signers map[string]Signer
}

func NewService() *Service {
	return &Service{signers: map[string]Signer{}}
}

// RegisterSigner binds the passed identity to the passed signer
func (s *Service) RegisterSigner(identity view.Identity, signer Signer) error {
	if identity.IsNone() {
		return errors.New("cannot register signer for an empty identity")
	}
	if signer == nil {
		return errors.New("cannot register a nil signer")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signers[identity.UniqueID()] = signer
	return nil
}

// GetSigner returns the signer bound to the passed identity
func (s *Service) GetSigner(identity view.Identity) (Signer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	signer, ok := s.signers[identity.UniqueID()]
	if !ok {
		return nil, errors.Errorf("no signer found for identity [%s]", identity)
	}
	return signer, nil
}

// GetVerifier returns a verifier for the passed identity
func (s *Service) GetVerifier(identity view.Identity) (Verifier, error) {
	return NewVerifier(identity)
}

// IsMe returns true if a signer was registered for the passed identity
func (s *Service) IsMe(identity view.Identity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.signers[identity.UniqueID()]
	return ok
}

// GetService returns the sig service registered in the passed provider.
// It panics, if no instance is found.
func GetService(sp registry.ServiceLocator) *Service {
	s, err := sp.GetService(&Service{})
	if err != nil {
		panic(err)
	}
	return s.(*Service)
}

// NewSigningIdentity generates a fresh ed25519 key pair.
// The public key is the party's identity, the returned signer wraps the
// private key.
func NewSigningIdentity() (view.Identity, Signer, error) {
	pk, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed generating ed25519 key")
	}
	return view.Identity(pk), &ed25519Signer{sk: sk}, nil
}

// NewSigningIdentityFromSeed derives a deterministic key pair from the passed seed
func NewSigningIdentityFromSeed(seed []byte) (view.Identity, Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, nil, errors.Errorf("seed must be [%d] bytes long, got [%d]", ed25519.SeedSize, len(seed))
	}
	sk := ed25519.NewKeyFromSeed(seed)
	return view.Identity(sk.Public().(ed25519.PublicKey)), &ed25519Signer{sk: sk}, nil
}

// NewVerifier returns a verifier checking signatures against the signing key
// the passed identity wraps
func NewVerifier(identity view.Identity) (Verifier, error) {
	if len(identity) != ed25519.PublicKeySize {
		return nil, errors.Errorf("identity is not an ed25519 public key, len [%d]", len(identity))
	}
	return &ed25519Verifier{pk: ed25519.PublicKey(identity)}, nil
}

type ed25519Signer struct {
	sk ed25519.PrivateKey
}

func (s *ed25519Signer) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(s.sk, message), nil
}

type ed25519Verifier struct {
	pk ed25519.PublicKey
}

func (v *ed25519Verifier) Verify(message, sigma []byte) error {
	if !ed25519.Verify(v.pk, message, sigma) {
		return errors.New("invalid signature")
	}
	return nil
}
