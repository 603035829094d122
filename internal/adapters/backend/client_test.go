package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkeye/interviewer/internal/domain"
)

type staticTokens struct{ token string }

func (s *staticTokens) Token() string           { return s.token }
func (s *staticTokens) Save(token string) error { s.token = token; return nil }
func (s *staticTokens) Clear() error            { s.token = ""; return nil }

func TestClient_AttachesBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer abc" {
			t.Errorf("expected bearer token, got %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected request id header")
		}
		json.NewEncoder(w).Encode(map[string]any{"id": 7, "user_name": "Hong", "position": "SRE"})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, &staticTokens{token: "abc"})
	s, err := c.CreateSession(context.Background(), domain.SessionRequest{UserName: "Hong", Position: "SRE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != "7" || s.Position != "SRE" {
		t.Errorf("unexpected session %+v", s)
	}
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("expected no auth header, got %q", got)
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, &staticTokens{})
	if _, err := c.Questions(context.Background(), "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_Questions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/3/questions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[{"id":1,"session_id":3,"question_text":"Tell me about yourself","order":1},{"id":2,"session_id":3,"question_text":"Why us?","order":2}]`))
	}))
	defer srv.Close()

	qs, err := New(srv.URL, time.Second, nil).Questions(context.Background(), "3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 2 || qs[1].Text != "Why us?" || qs[0].ID != "1" {
		t.Errorf("unexpected questions %+v", qs)
	}
}

func TestClient_SubmitAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body answerPayload
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.QuestionID != "9" || body.AnswerText != "I enjoy debugging" {
			t.Errorf("unexpected payload %+v", body)
		}
		w.Write([]byte(`{"status":"submitted","answer_id":11}`))
	}))
	defer srv.Close()

	if err := New(srv.URL, time.Second, nil).SubmitAnswer(context.Background(), "9", "I enjoy debugging"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_StatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/me":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, nil)
	if _, err := c.CurrentUser(context.Background()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	_, err := c.Results(context.Background(), "1")
	var serr *StatusError
	if !errors.As(err, &serr) || serr.Status != http.StatusInternalServerError {
		t.Errorf("expected 500 StatusError, got %v", err)
	}
}

func TestClient_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("username") != "kim" || r.PostForm.Get("password") != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"access_token":"tok","token_type":"bearer"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, nil)
	tok, err := c.Login(context.Background(), "kim", "pw")
	if err != nil || tok != "tok" {
		t.Fatalf("expected tok, got %q err=%v", tok, err)
	}
	if _, err := c.Login(context.Background(), "kim", "bad"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
