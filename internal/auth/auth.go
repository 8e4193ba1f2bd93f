package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"newsinsight/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type Store interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error)
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

type Config struct {
	Secret    string
	Issuer    string
	TTL time.Duration
	// CacheSize bounds the session cache; zero disables it.
	CacheSize int
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Service stands in for the hosted auth provider: it owns credentials and
// sessions and hands out signed session tokens.
type Service struct {
	store    Store
	secret   []byte
	issuer   string
	ttl      time.Duration
	cost     int
	sessions *expirable.LRU[uuid.UUID, domain.Session]
	validate *validator.Validate
	now      func() time.Time
	log      *slog.Logger
}

type SignUpInput struct {
	Email       string
	Password    string
	DisplayName string
}

// Issued is a freshly created session and its bearer token.
type Issued struct {
	Session domain.Session
	Token   string
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

func New(store Store, cfg Config, log *slog.Logger) *Service {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	var sessions *expirable.LRU[uuid.UUID, domain.Session]
	if cfg.CacheSize > 0 {
		sessions = expirable.NewLRU[uuid.UUID, domain.Session](cfg.CacheSize, nil, cfg.TTL)
	}

	return &Service{
		store:    store,
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		ttl:      cfg.TTL,
		cost:     cost,
		sessions: sessions,
		validate: validator.New(),
		now:      time.Now,
		log:      log,
	}
}

func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*Issued, error) {
	email := strings.TrimSpace(in.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, domain.ErrInvalidEmail
	}

	if len(in.Password) < minPasswordLength {
		return nil, domain.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, domain.ErrPasswordTooLong
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = email
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
	}
	if err = s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.InfoContext(ctx, "User is signed up",
		"userID", user.ID)

	return s.issue(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email string, password string) (*Issued, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return s.issue(ctx, user)
}

func (s *Service) SignOut(ctx context.Context, sessionID uuid.UUID) error {
	s.forgetSession(sessionID)

	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	s.log.InfoContext(ctx, "Session is closed",
		"sessionID", sessionID)

	return nil
}

// Authenticate resolves a bearer token into the session it was issued for.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrUnauthorized
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	sessionID, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed session id", domain.ErrUnauthorized)
	}

	now := s.now()

	session, cached := s.cachedSession(sessionID)
	if !cached {
		session, err = s.store.GetSession(ctx, sessionID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		if err != nil {
			return nil, fmt.Errorf("get session: %w", err)
		}
	}

	if session.Expired(now) {
		s.forgetSession(sessionID)
		return nil, domain.ErrSessionExpired
	}

	if session.UserID.String() != claims.Subject {
		return nil, fmt.Errorf("%w: subject mismatch", domain.ErrUnauthorized)
	}

	if !cached {
		s.rememberSession(*session)
	}

	return session, nil
}

// PurgeExpired drops sessions past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredSessions(ctx)
}

func (s *Service) issue(ctx context.Context, user *domain.User) (*Issued, error) {
	now := s.now().UTC().Truncate(time.Second)
	session := domain.Session{
		ID:          uuid.New(),
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	if err := s.store.CreateSession(ctx, &session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID.String(),
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	s.rememberSession(session)

	return &Issued{Session: session, Token: token}, nil
}

func (s *Service) cachedSession(sessionID uuid.UUID) (*domain.Session, bool) {
	if s.sessions == nil {
		return nil, false
	}

	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, false
	}

	return &session, true
}

func (s *Service) rememberSession(session domain.Session) {
	if s.sessions != nil {
		s.sessions.Add(session.ID, session)
	}
}

func (s *Service) forgetSession(sessionID uuid.UUID) {
	if s.sessions != nil {
		s.sessions.Remove(sessionID)
	}
}
