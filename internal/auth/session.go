// Package auth owns the client session: the current user, the durable
// token and the login/logout/register/bootstrap lifecycle around them.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"klient-plikow/internal/apiclient"
	"klient-plikow/internal/models"
	"klient-plikow/internal/validate"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterProfile struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type tokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Session is created empty; it is populated by Login/Register or by
// Bootstrap exchanging a persisted token for a fresh user record, and
// cleared entirely by Logout.
type Session struct {
	api    *apiclient.Client
	tokens *TokenCache
	log    *zap.Logger

	mu          sync.Mutex
	user        *models.User
	lastErr     string
	cancelLogin context.CancelFunc
}

func NewSession(api *apiclient.Client, tokens *TokenCache, log *zap.Logger) *Session {
	return &Session{
		api:    api,
		tokens: tokens,
		log:    log,
	}
}

// Login authenticates and on success stores the token durably and sets the
// current user. A new Login supersedes a previous in-flight one: the stale
// attempt is canceled and settles silently.
func (s *Session) Login(ctx context.Context, creds Credentials) (*models.User, error) {
	ctx, cancel := s.beginAuth(ctx)
	defer cancel()

	var resp tokenResponse
	err := s.api.Post(ctx, "/auth/login/", creds, &resp)
	return s.settleAuth(ctx, &resp, err)
}

// Register creates an account with the same contract as Login. Field
// checks run client-side first and never reach the network.
func (s *Session) Register(ctx context.Context, profile RegisterProfile) (*models.User, error) {
	if err := checkProfile(profile); err != nil {
		s.mu.Lock()
		s.lastErr = err.Error()
		s.mu.Unlock()
		return nil, err
	}

	ctx, cancel := s.beginAuth(ctx)
	defer cancel()

	var resp tokenResponse
	err := s.api.Post(ctx, "/auth/register/", profile, &resp)
	return s.settleAuth(ctx, &resp, err)
}

// FetchCurrentUser re-reads the authoritative current-user record, e.g. to
// pick up a quota change made by an admin.
func (s *Session) FetchCurrentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	err := s.api.Get(ctx, "/auth/users/me/", nil, &user)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.lastErr = err.Error()
		return nil, err
	}
	s.user = &user
	return &user, nil
}

// Bootstrap restores the session at startup. No token means staying
// unauthenticated. A token that the backend no longer accepts is discarded;
// this is the single self-healing path against a stale or revoked token.
func (s *Session) Bootstrap(ctx context.Context) error {
	if s.tokens.Token() == "" {
		return nil
	}

	var user models.User
	err := s.api.Get(ctx, "/auth/users/me/", nil, &user)
	if err != nil {
		if ctx.Err() != nil {
			// Abandoned mid-flight; keep the token for the next start.
			return ctx.Err()
		}
		s.log.Info("discarding persisted token", zap.Error(err))
		if clearErr := s.tokens.Clear(); clearErr != nil {
			return clearErr
		}
		return nil
	}

	s.SetUser(&user)
	return nil
}

// Logout is observable client-side without a server round-trip: the server
// call is best-effort and its failure is only logged.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.api.Post(ctx, "/auth/logout/", struct{}{}, nil); err != nil && ctx.Err() == nil {
		s.log.Debug("server logout failed", zap.Error(err))
	}

	s.mu.Lock()
	s.user = nil
	s.lastErr = ""
	s.cancelLogin = nil
	s.mu.Unlock()

	return s.tokens.Clear()
}

// SetUser installs a user record already in hand, avoiding an extra
// round-trip on the bootstrap path.
func (s *Session) SetUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

func (s *Session) CurrentUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = ""
}

// Poll re-fetches the current user on a ticker until the context is
// canceled, so server-side changes (admin quota updates) become visible.
func (s *Session) Poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.FetchCurrentUser(ctx); err != nil && ctx.Err() == nil {
				s.log.Debug("periodic user refresh failed", zap.Error(err))
			}
		}
	}
}

func (s *Session) beginAuth(ctx context.Context) (context.Context, context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelLogin != nil {
		s.cancelLogin()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancelLogin = cancel
	s.lastErr = ""
	return ctx, cancel
}

func (s *Session) settleAuth(ctx context.Context, resp *tokenResponse, err error) (*models.User, error) {
	if err != nil {
		if ctx.Err() != nil {
			// Canceled or superseded: the session stays untouched.
			return nil, ctx.Err()
		}
		s.mu.Lock()
		s.lastErr = err.Error()
		s.mu.Unlock()
		return nil, err
	}

	if err := s.tokens.Set(resp.Token); err != nil {
		s.mu.Lock()
		s.lastErr = err.Error()
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.user = resp.User
	s.mu.Unlock()
	return resp.User, nil
}

func checkProfile(p RegisterProfile) error {
	if !validate.Username(p.Username) {
		return &validate.ValidationError{Field: "username", Reason: "niepoprawny login"}
	}
	if !validate.Email(p.Email) {
		return &validate.ValidationError{Field: "email", Reason: "niepoprawny email"}
	}
	if p.FullName == "" {
		return &validate.ValidationError{Field: "full_name", Reason: "pole wymagane"}
	}
	if !validate.Password(p.Password) {
		return &validate.ValidationError{Field: "password", Reason: "zbyt słabe hasło"}
	}
	if p.Password != p.ConfirmPassword {
		return &validate.ValidationError{Field: "confirmPassword", Reason: "hasła muszą być identyczne"}
	}
	return nil
}

// IsValidation reports whether err is a client-side field check failure.
func IsValidation(err error) bool {
	var ve *validate.ValidationError
	return errors.As(err, &ve)
}
