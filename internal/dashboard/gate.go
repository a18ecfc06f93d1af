package dashboard

import (
	"context"
	"strings"
	"time"

	"fintrack/internal/client"
)

// Step is the position of the login gate.
type Step int

const (
	StepEmail Step = iota
	StepPIN
	StepAuthenticated
)

func (s Step) String() string {
	switch s {
	case StepEmail:
		return "email"
	case StepPIN:
		return "pin"
	case StepAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Authenticator is the auth half of the REST client.
type Authenticator interface {
	VerifyEmail(ctx context.Context, email string) error
	VerifyPIN(ctx context.Context, email, pin string) (client.Session, error)
	Logout(ctx context.Context) error
}

// SessionStorage persists the session marker.
type SessionStorage interface {
	Load(now time.Time) (client.Marker, bool)
	Save(m client.Marker) error
	Clear() error
}

// Gate is the email then PIN login state machine. Err holds the message of
// the last failed submission.
type Gate struct {
	auth    Authenticator
	storage SessionStorage
	now     func() time.Time

	step   Step
	email  string
	err    string
	marker client.Marker
}

// NewGate starts authenticated when a valid marker is stored.
func NewGate(auth Authenticator, storage SessionStorage) *Gate {
	g := &Gate{auth: auth, storage: storage, now: time.Now}
	if m, ok := storage.Load(g.now()); ok {
		g.step = StepAuthenticated
		g.email = m.Email
		g.marker = m
	}
	return g
}

func (g *Gate) Step() Step    { return g.step }
func (g *Gate) Email() string { return g.email }
func (g *Gate) Err() string   { return g.err }

// Session returns the stored marker once authenticated.
func (g *Gate) Session() (client.Marker, bool) {
	return g.marker, g.step == StepAuthenticated
}

// SubmitEmail asks for a PIN and moves to the PIN step on success.
func (g *Gate) SubmitEmail(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := g.auth.VerifyEmail(ctx, email); err != nil {
		g.err = client.Message(err)
		return err
	}
	g.email = email
	g.err = ""
	g.step = StepPIN
	return nil
}

// SubmitPIN opens the session. A rejected PIN keeps the gate on the PIN step.
func (g *Gate) SubmitPIN(ctx context.Context, pin string) error {
	s, err := g.auth.VerifyPIN(ctx, g.email, strings.TrimSpace(pin))
	if err != nil {
		g.err = client.Message(err)
		return err
	}
	m := client.Marker{Email: s.Email, Authenticated: true, Token: s.Token, ExpiresAt: s.ExpiresAt}
	if err := g.storage.Save(m); err != nil {
		g.err = err.Error()
		return err
	}
	g.marker = m
	g.err = ""
	g.step = StepAuthenticated
	return nil
}

// Back returns to the email step and clears the error.
func (g *Gate) Back() {
	g.step = StepEmail
	g.err = ""
}

// Logout revokes the session server side, best effort, and forgets it.
func (g *Gate) Logout(ctx context.Context) error {
	_ = g.auth.Logout(ctx)
	g.step = StepEmail
	g.err = ""
	g.marker = client.Marker{}
	return g.storage.Clear()
}
