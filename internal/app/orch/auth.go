package orch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/interviewer/internal/domain"
	"github.com/rs/zerolog/log"
)

// Resume restores a stored login. A rejected token is cleared.
func (m *Manager) Resume(ctx context.Context) error {
	m.mu.Lock()
	if err := m.checkLocked(Authenticating, "resume"); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	if m.tokens.Token() == "" {
		return domain.ErrUnauthorized
	}
	return m.authenticate(ctx)
}

func (m *Manager) Login(ctx context.Context, username, password string) error {
	creds := domain.Credentials{Username: strings.TrimSpace(username), Password: password}
	if err := domain.Validate(creds); err != nil {
		return err
	}
	m.mu.Lock()
	if err := m.checkLocked(Authenticating, "login"); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	token, err := m.auth.Login(ctx, creds.Username, creds.Password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := m.tokens.Save(token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return m.authenticate(ctx)
}

// Register creates the account and logs in with it.
func (m *Manager) Register(ctx context.Context, creds domain.Credentials) error {
	creds.Username = strings.TrimSpace(creds.Username)
	creds.FullName = strings.TrimSpace(creds.FullName)
	if err := domain.Validate(creds); err != nil {
		return err
	}
	m.mu.Lock()
	if err := m.checkLocked(Authenticating, "register"); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	if err := m.auth.Register(ctx, creds); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	log.Info().Str("module", "app.orch").Str("user", creds.Username).Msg("registered")
	return m.Login(ctx, creds.Username, creds.Password)
}

func (m *Manager) authenticate(ctx context.Context) error {
	user, err := m.auth.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			if cerr := m.tokens.Clear(); cerr != nil {
				log.Warn().Err(cerr).Str("module", "app.orch").Msg("clear token")
			}
		}
		return err
	}

	m.mu.Lock()
	if err := m.checkLocked(Authenticating, "authenticate"); err != nil {
		m.mu.Unlock()
		return err
	}
	m.user = user
	m.lastErr = nil
	err = m.transitionLocked(EvAuthenticated)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	log.Info().Str("module", "app.orch").Str("user", user.Username).Msg("authenticated")
	m.notifyState()
	return nil
}

// Logout is accepted in every state: the session is torn down and the token cleared.
func (m *Manager) Logout() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	l := m.resetSessionLocked()
	m.user = domain.User{}
	m.lastErr = nil
	err := m.transitionLocked(EvLogout)
	m.mu.Unlock()

	l.release()
	if cerr := m.tokens.Clear(); cerr != nil {
		log.Warn().Err(cerr).Str("module", "app.orch").Msg("clear token")
	}
	m.notifyState()
	return err
}
