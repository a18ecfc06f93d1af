package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

const pinDigits = 6

// AuthStore is the persistence used by AuthService.
type AuthStore interface {
	EnsureUsers(ctx context.Context, emails []string) error
	UserExists(ctx context.Context, email string) (bool, error)
	CreatePIN(ctx context.Context, email, hash string, expiresAt time.Time) error
	ActivePIN(ctx context.Context, email string) (storage.LoginPIN, error)
	RecordPINFailure(ctx context.Context, id int64, maxAttempts int) error
	MarkPINUsed(ctx context.Context, id int64) error
	RevokeSession(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsSessionRevoked(ctx context.Context, tokenID string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) error
}

type AuthConfig struct {
	Secret         []byte
	SessionTTL     time.Duration
	PINTTL         time.Duration
	PINMaxAttempts int
	// DevLogPINs logs issued PINs in clear text for local development.
	DevLogPINs bool
}

// Claims are the session token claims; ID is the revocable token id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Session is returned by a successful PIN check.
type Session struct {
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthService implements the email then PIN login gate.
type AuthService struct {
	store  AuthStore
	events amqp.Publisher
	cfg    AuthConfig
	logger *log.Logger
	now    func() time.Time
}

func NewAuthService(store AuthStore, events amqp.Publisher, cfg AuthConfig, logger *log.Logger) *AuthService {
	if events == nil {
		events = amqp.NoopPublisher{Logger: logger}
	}
	if cfg.PINMaxAttempts < 1 {
		cfg.PINMaxAttempts = 1
	}
	return &AuthService{
		store:  store,
		events: events,
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentAuth),
		now:    time.Now,
	}
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterUsers makes the configured addresses known.
func (s *AuthService) RegisterUsers(ctx context.Context, emails []string) error {
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = NormalizeEmail(e); e != "" {
			normalized = append(normalized, e)
		}
	}
	return s.store.EnsureUsers(ctx, normalized)
}

// VerifyEmail issues a fresh PIN for a registered address and hands it to
// the messaging bot.
func (s *AuthService) VerifyEmail(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrEmailRequired
	}
	ok, err := s.store.UserExists(ctx, email)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.WarnContext(ctx, "PIN requested for unknown email", log.FieldEmail, email)
		return ErrEmailNotRegistered
	}

	pin, err := generatePIN()
	if err != nil {
		return fmt.Errorf("generate pin: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	expiresAt := s.now().Add(s.cfg.PINTTL)
	if err := s.store.CreatePIN(ctx, email, string(hash), expiresAt); err != nil {
		return err
	}

	if err := s.events.Publish(ctx, amqp.NewPINIssued(email, pin, expiresAt)); err != nil {
		return fmt.Errorf("deliver pin: %w", err)
	}
	if s.cfg.DevLogPINs {
		s.logger.WarnContext(ctx, "Issued login PIN", log.FieldEmail, email, "pin", pin)
	} else {
		s.logger.InfoContext(ctx, "Issued login PIN", log.FieldEmail, email)
	}
	return nil
}

// VerifyPIN checks pin against the active challenge and opens a session.
// Wrong PINs count towards the attempt limit.
func (s *AuthService) VerifyPIN(ctx context.Context, email, pin string) (Session, error) {
	email = NormalizeEmail(email)
	pin = strings.TrimSpace(pin)
	if email == "" {
		return Session{}, ErrEmailRequired
	}
	if pin == "" {
		return Session{}, ErrPINRequired
	}

	challenge, err := s.store.ActivePIN(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return Session{}, ErrInvalidPIN
	}
	if err != nil {
		return Session{}, err
	}
	if s.now().After(challenge.ExpiresAt) {
		return Session{}, ErrInvalidPIN
	}
	if bcrypt.CompareHashAndPassword([]byte(challenge.Hash), []byte(pin)) != nil {
		if err := s.store.RecordPINFailure(ctx, challenge.ID, s.cfg.PINMaxAttempts); err != nil {
			return Session{}, err
		}
		s.logger.WarnContext(ctx, "Wrong login PIN",
			log.FieldEmail, email, "attempt", challenge.Attempts+1)
		return Session{}, ErrInvalidPIN
	}
	if err := s.store.MarkPINUsed(ctx, challenge.ID); err != nil {
		return Session{}, err
	}

	session, err := s.issueToken(email)
	if err != nil {
		return Session{}, err
	}
	s.logger.InfoContext(ctx, "Session opened", log.FieldEmail, email)
	return session, nil
}

func (s *AuthService) issueToken(email string) (Session, error) {
	now := s.now()
	exp := now.Add(s.cfg.SessionTTL)
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Email: email, Token: token, ExpiresAt: exp.UTC().Truncate(time.Second)}, nil
}

// Authenticate validates a bearer token and rejects revoked ones.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidSession
	}
	if claims.ID == "" || claims.Email == "" {
		return nil, ErrInvalidSession
	}
	revoked, err := s.store.IsSessionRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Logout revokes the session until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	exp := s.now().Add(s.cfg.SessionTTL)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	if err := s.store.RevokeSession(ctx, claims.ID, exp); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Session revoked", log.FieldEmail, claims.Email)
	return nil
}

// Purge drops expired PINs and revocations.
func (s *AuthService) Purge(ctx context.Context) error {
	return s.store.PurgeExpired(ctx, s.now())
}

func generatePIN() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < pinDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", pinDigits, n.Int64()), nil
}

type claimsKey struct{}

// WithClaims stores the authenticated claims on ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the claims stored by WithClaims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}
