package manager

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// TokenManager manages staff session tokens in memory. Tokens do not
// survive a restart; staff log in again.
type TokenManager struct {
	tokens map[string]*SessionToken
	mu     sync.RWMutex
}

// SessionToken represents one authenticated staff session.
type SessionToken struct {
	Token     string
	StaffID   string
	Role      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewTokenManager creates a new token manager
func NewTokenManager() *TokenManager {
	return &TokenManager{
		tokens: make(map[string]*SessionToken),
	}
}

// GenerateToken issues a new session token for a staff member
func (tm *TokenManager) GenerateToken(staffID, role string, duration time.Duration) (*SessionToken, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return nil, fmt.Errorf("failed to generate random token: %w", err)
	}

	token := hex.EncodeToString(bytes)

	st := &SessionToken{
		Token:     token,
		StaffID:   staffID,
		Role:      role,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(duration),
	}

	tm.mu.Lock()
	tm.tokens[token] = st
	tm.mu.Unlock()

	return st, nil
}

// ValidateToken validates a session token and returns the session
func (tm *TokenManager) ValidateToken(token string) (*SessionToken, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	st, exists := tm.tokens[token]
	if !exists {
		return nil, fmt.Errorf("invalid token")
	}

	if time.Now().After(st.ExpiresAt) {
		return nil, fmt.Errorf("token expired")
	}

	return st, nil
}

// RevokeToken revokes a session token
func (tm *TokenManager) RevokeToken(token string) {
	tm.mu.Lock()
	delete(tm.tokens, token)
	tm.mu.Unlock()
}

// CleanupExpiredTokens removes expired tokens
func (tm *TokenManager) CleanupExpiredTokens() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	now := time.Now()
	for token, st := range tm.tokens {
		if now.After(st.ExpiresAt) {
			delete(tm.tokens, token)
		}
	}
}
