package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/dkeye/interviewer/internal/domain"
)

var ErrNoToken = errors.New("login response carried no access token")

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges credentials for a bearer token. Storing it is up to the caller.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var resp tokenResponse
	if err := c.doForm(ctx, "/token", form, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", ErrNoToken
	}
	return resp.AccessToken, nil
}

type registerPayload struct {
	Username       string `json:"username"`
	HashedPassword string `json:"hashed_password"`
	FullName       string `json:"full_name"`
}

func (c *Client) Register(ctx context.Context, creds domain.Credentials) error {
	return c.doJSON(ctx, http.MethodPost, "/register", registerPayload{
		Username:       creds.Username,
		HashedPassword: creds.Password,
		FullName:       creds.FullName,
	}, nil)
}

func (c *Client) CurrentUser(ctx context.Context) (domain.User, error) {
	var u domain.User
	err := c.doJSON(ctx, http.MethodGet, "/users/me", nil, &u)
	return u, err
}
