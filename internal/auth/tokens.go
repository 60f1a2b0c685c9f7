// Package auth issues and verifies session tokens. Tokens are PASETO
// v4.local, carried in the auth cookie; active sessions are also recorded
// in Redis so logout can revoke a token before it expires.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/redis/go-redis/v9"

	"cvbuilder/internal/config"
	"cvbuilder/internal/logging"
)

var (
	// ErrInvalidToken signals a token that does not decrypt, fails its
	// claims, or belongs to a revoked session.
	ErrInvalidToken = errors.New("invalid session token")
)

// Manager issues and verifies session tokens.
type Manager struct {
	key      paseto.V4SymmetricKey
	parser   paseto.Parser
	ttl      time.Duration
	sessions *redis.Client
}

// NewManager builds a Manager from config. An empty token key generates a
// random one, which invalidates all sessions on restart. A nil redis
// client disables the revocation registry; tokens then remain valid until
// they expire.
func NewManager(cfg config.Config, sessions *redis.Client) (*Manager, error) {
	var key paseto.V4SymmetricKey
	if cfg.Auth.TokenKey != "" {
		k, err := paseto.V4SymmetricKeyFromHex(cfg.Auth.TokenKey)
		if err != nil {
			return nil, err
		}
		key = k
	} else {
		key = paseto.NewV4SymmetricKey()
		logging.Warn("No auth token key configured, sessions will not survive restarts")
	}

	parser := paseto.NewParser()
	parser.AddRule(paseto.NotExpired())

	return &Manager{
		key:      key,
		parser:   parser,
		ttl:      cfg.Auth.SessionTTL,
		sessions: sessions,
	}, nil
}

// Issue creates a token for userID and records the session.
func (m *Manager) Issue(ctx context.Context, userID, email string) (string, error) {
	now := time.Now()
	tok := paseto.NewToken()
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(now.Add(m.ttl))
	tok.SetSubject(userID)
	if err := tok.Set("email", email); err != nil {
		return "", err
	}

	signed := tok.V4Encrypt(m.key, nil)

	if m.sessions != nil {
		if err := m.sessions.Set(ctx, sessionKey(signed), userID, m.ttl).Err(); err != nil {
			return "", err
		}
	}
	return signed, nil
}

// Verify decrypts the token, checks its claims, and confirms the session
// has not been revoked. Returns the user ID.
func (m *Manager) Verify(ctx context.Context, token string) (string, error) {
	parsed, err := m.parser.ParseV4Local(m.key, token, nil)
	if err != nil {
		return "", ErrInvalidToken
	}
	userID, err := parsed.GetSubject()
	if err != nil || userID == "" {
		return "", ErrInvalidToken
	}

	if m.sessions != nil {
		n, err := m.sessions.Exists(ctx, sessionKey(token)).Result()
		if err != nil {
			// Redis being down must not lock every user out; the token
			// itself still proves authentication.
			logging.Warn("Session registry unavailable", "error", err)
			return userID, nil
		}
		if n == 0 {
			return "", ErrInvalidToken
		}
	}
	return userID, nil
}

// Revoke removes the session record for token. The token then fails
// verification even before its expiry.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if m.sessions == nil {
		return nil
	}
	return m.sessions.Del(ctx, sessionKey(token)).Err()
}

// TTL returns the configured session lifetime, used for cookie expiry.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func sessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "session:" + hex.EncodeToString(sum[:])
}
