package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	pkgAuth "github.com/alopez/store-backend/pkg/auth"
	"github.com/alopez/store-backend/pkg/auth/session"
	"github.com/alopez/store-backend/pkg/config"
	"github.com/alopez/store-backend/pkg/db/models"
	"github.com/alopez/store-backend/pkg/enums"
	pkgerrors "github.com/alopez/store-backend/pkg/errors"
)

type stubUserRepo struct {
	users map[string]*models.User
}

func (s stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := s.users[email]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s stubUserRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type stubSessions struct {
	tokens  map[string]int64
	counter int
	err     error
}

func newStubSessions() *stubSessions {
	return &stubSessions{tokens: map[string]int64{}}
}

func (s *stubSessions) Generate(ctx context.Context, userID int64) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.counter++
	token := "refresh-" + string(rune('a'+s.counter))
	s.tokens[token] = userID
	return token, nil
}

func (s *stubSessions) Rotate(ctx context.Context, provided string) (int64, string, error) {
	userID, ok := s.tokens[provided]
	if !ok {
		return 0, "", session.ErrInvalidRefreshToken
	}
	delete(s.tokens, provided)
	token, err := s.Generate(ctx, userID)
	return userID, token, err
}

func (s *stubSessions) Revoke(ctx context.Context, provided string) error {
	delete(s.tokens, provided)
	return nil
}

type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "h:" + p, nil }

func (plainHasher) Verify(p, encoded string) (bool, error) { return encoded == "h:"+p, nil }

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "store", ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60}

func newAuthService(t *testing.T, sessions *stubSessions) Service {
	t.Helper()
	repo := stubUserRepo{users: map[string]*models.User{
		"ada@example.com": {ID: 7, Name: "Ada", Email: "ada@example.com", Password: "h:secret1", Role: enums.RoleAdmin},
	}}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		Hasher:         plainHasher{},
		JWTConfig:      testJWT,
		Now:            func() time.Time { return time.Now() },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestLoginMintsTokenWithClaims(t *testing.T) {
	sessions := newStubSessions()
	svc := newAuthService(t, sessions)

	pair, err := svc.Login(context.Background(), LoginRequest{Email: " ADA@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.RefreshToken == "" || sessions.tokens[pair.RefreshToken] != 7 {
		t.Fatalf("expected refresh session for user 7, got %v", sessions.tokens)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, pair.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != "7" || claims.Email != "ada@example.com" || claims.Role != enums.RoleAdmin || claims.Name != "Ada" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected jti")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newAuthService(t, newStubSessions())

	for _, req := range []LoginRequest{
		{Email: "ada@example.com", Password: "wrong"},
		{Email: "nobody@example.com", Password: "secret1"},
	} {
		_, err := svc.Login(context.Background(), req)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized || typed.Message() != "Invalid email or password" {
			t.Fatalf("expected unauthorized for %+v, got %v", req, err)
		}
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	sessions := newStubSessions()
	svc := newAuthService(t, sessions)

	pair, err := svc.Login(context.Background(), LoginRequest{Email: "ada@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == pair.RefreshToken {
		t.Fatal("expected rotated refresh token")
	}
	if _, ok := sessions.tokens[pair.RefreshToken]; ok {
		t.Fatal("old refresh token should be revoked")
	}

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected reuse to be unauthorized, got %v", err)
	}
}

func TestLogoutRevokes(t *testing.T) {
	sessions := newStubSessions()
	svc := newAuthService(t, sessions)
	pair, err := svc.Login(context.Background(), LoginRequest{Email: "ada@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessions.tokens) != 0 {
		t.Fatalf("expected no sessions, got %v", sessions.tokens)
	}
}

func TestLoginSessionStoreFailure(t *testing.T) {
	sessions := newStubSessions()
	sessions.err = errors.New("redis down")
	svc := newAuthService(t, sessions)
	_, err := svc.Login(context.Background(), LoginRequest{Email: "ada@example.com", Password: "secret1"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestMe(t *testing.T) {
	svc := newAuthService(t, newStubSessions())
	dto, err := svc.Me(context.Background(), 7)
	if err != nil || dto.Email != "ada@example.com" {
		t.Fatalf("unexpected me %+v %v", dto, err)
	}
	if _, err := svc.Me(context.Background(), 8); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
