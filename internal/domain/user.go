// Package domain contains interview entities and the error taxonomy, no transport logic.
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUsernameLen = 64
	MaxPositionLen = 128
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type User struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id ID, username, fullName string) (*User, error) {
	username = strings.TrimSpace(username)
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	return &User{ID: id, Username: username, FullName: fullName}, nil
}
