// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NonceAction is the action a nonce is bound to.
const NonceAction = "ask_mirror_talk_nonce"

// DefaultNonceTTL matches the lifetime of a WordPress nonce.
const DefaultNonceTTL = 12 * time.Hour

// ErrInvalidNonce is returned for nonces that fail verification.
var ErrInvalidNonce = errors.New("invalid or expired nonce")

// =============================================================================
// ISSUER
// =============================================================================

// Nonces issues and verifies anti-forgery tokens.
type Nonces struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewNonces creates an issuer. An empty secret is replaced by 32 random
// bytes, which invalidates outstanding nonces on restart.
func NewNonces(secret string, ttl time.Duration) (*Nonces, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate nonce secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &Nonces{secret: key, ttl: ttl, now: time.Now}, nil
}

// Issue returns a fresh nonce.
func (n *Nonces) Issue() (string, error) {
	now := n.now()
	claims := jwt.RegisteredClaims{
		Subject:   NonceAction,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(n.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(n.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign nonce: %w", err)
	}
	return token, nil
}

// Verify checks signature, subject and expiry.
func (n *Nonces) Verify(nonce string) error {
	if nonce == "" {
		return ErrInvalidNonce
	}
	_, err := jwt.ParseWithClaims(nonce, &jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return n.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(NonceAction),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(n.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNonce, err)
	}
	return nil
}

// =============================================================================
// CLIENT-SIDE HOLDER
// =============================================================================

// NonceStore holds the client's current nonce. It is replaced by refresh.
type NonceStore struct {
	mu    sync.RWMutex
	nonce string
}

// NewNonceStore creates a store seeded with the nonce embedded at startup.
func NewNonceStore(initial string) *NonceStore {
	return &NonceStore{nonce: initial}
}

// Get returns the current nonce.
func (s *NonceStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nonce
}

// Set replaces the current nonce.
func (s *NonceStore) Set(nonce string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonce = nonce
}
