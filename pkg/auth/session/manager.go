package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alopez/store-backend/pkg/config"
	redisclient "github.com/alopez/store-backend/pkg/redis"
	redislib "github.com/redis/go-redis/v9"
)

const refreshTokenBytes = 32

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	RefreshSessionKey(tokenHash string) string
}

// Manager issues opaque refresh tokens and rotates them on use.
// Redis stores sha256(token) -> user id, so raw tokens never hit the store.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	ttl   time.Duration
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive")
	}
	accessTTL := cfg.AccessTokenTTL()
	if ttl <= accessTTL {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, accessTTL)
	}

	return &Manager{
		store: client,
		keyer: client,
		ttl:   ttl,
	}, nil
}

// TTL is the lifetime of every issued refresh token.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Generate creates a refresh token for the user and stores its session.
func (m *Manager) Generate(ctx context.Context, userID int64) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("user id is required")
	}
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, m.key(token), strconv.FormatInt(userID, 10), m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Rotate exchanges a valid refresh token for a new one bound to the same user.
// The provided token is invalidated.
func (m *Manager) Rotate(ctx context.Context, provided string) (int64, string, error) {
	userID, err := m.lookup(ctx, provided)
	if err != nil {
		return 0, "", err
	}

	if err := m.store.Del(ctx, m.key(provided)); err != nil {
		return 0, "", err
	}

	newToken, err := m.Generate(ctx, userID)
	if err != nil {
		return 0, "", err
	}
	return userID, newToken, nil
}

// Revoke deletes the session behind the token. Unknown tokens are ignored.
func (m *Manager) Revoke(ctx context.Context, provided string) error {
	if strings.TrimSpace(provided) == "" {
		return nil
	}
	return m.store.Del(ctx, m.key(provided))
}

func (m *Manager) lookup(ctx context.Context, provided string) (int64, error) {
	if strings.TrimSpace(provided) == "" {
		return 0, ErrInvalidRefreshToken
	}
	stored, err := m.store.Get(ctx, m.key(provided))
	if err != nil {
		return 0, wrapNotFound(err)
	}
	userID, err := strconv.ParseInt(stored, 10, 64)
	if err != nil || userID <= 0 {
		return 0, ErrInvalidRefreshToken
	}
	return userID, nil
}

func (m *Manager) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return m.keyer.RefreshSessionKey(hex.EncodeToString(sum[:]))
}

func generateRefreshToken() (string, error) {
	bytes := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

func wrapNotFound(err error) error {
	if errors.Is(err, redislib.Nil) {
		return ErrInvalidRefreshToken
	}
	return err
}
