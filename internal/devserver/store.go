// Package devserver is an in-memory stand-in for the interview backend and
// media server, for local runs and end-to-end tests.
package devserver

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/interviewer/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists      = errors.New("username already registered")
	ErrBadCredentials  = errors.New("incorrect username or password")
	ErrSessionNotFound = errors.New("session not found")
	ErrQuestionUnknown = errors.New("question not found")
)

type account struct {
	user domain.User
	hash []byte
}

type answer struct {
	id         domain.ID
	question   domain.Question
	text       string
	evaluation map[string]any
	emotion    map[string]any
}

type sessionEntry struct {
	session   domain.Session
	owner     string
	questions []domain.Question
}

type Store struct {
	bcryptCost int

	mu        sync.RWMutex
	seq       int
	accounts  map[string]*account
	sessions  map[domain.ID]*sessionEntry
	questions map[domain.ID]domain.Question
	answers   map[domain.ID][]*answer // by session
}

func NewStore() *Store {
	return &Store{
		bcryptCost: bcrypt.DefaultCost,
		accounts:   make(map[string]*account),
		sessions:   make(map[domain.ID]*sessionEntry),
		questions:  make(map[domain.ID]domain.Question),
		answers:    make(map[domain.ID][]*answer),
	}
}

func (s *Store) nextIDLocked() domain.ID {
	s.seq++
	return domain.ID(strconv.Itoa(s.seq))
}

func (s *Store) Register(username, password, fullName string) (domain.User, error) {
	u, err := domain.NewUser("", username, fullName)
	if err != nil {
		return domain.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return domain.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[u.Username]; ok {
		return domain.User{}, ErrUserExists
	}
	u.ID = s.nextIDLocked()
	s.accounts[u.Username] = &account{user: *u, hash: hash}
	log.Info().Str("module", "devserver.store").Str("username", u.Username).Msg("registered user")
	return *u, nil
}

func (s *Store) Authenticate(username, password string) (domain.User, error) {
	s.mu.RLock()
	acc, ok := s.accounts[strings.TrimSpace(username)]
	s.mu.RUnlock()
	if !ok {
		return domain.User{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return domain.User{}, ErrBadCredentials
	}
	return acc.user, nil
}

func (s *Store) User(username string) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[username]
	if !ok {
		return domain.User{}, false
	}
	return acc.user, true
}

// CreateSession stores the session together with its question set.
func (s *Store) CreateSession(owner string, req domain.SessionRequest, texts []string) domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := domain.Session{
		ID:        s.nextIDLocked(),
		UserName:  req.UserName,
		Position:  req.Position,
		Status:    "in_progress",
		CreatedAt: time.Now().UTC(),
	}
	entry := &sessionEntry{session: sess, owner: owner}
	for i, text := range texts {
		q := domain.Question{ID: s.nextIDLocked(), SessionID: sess.ID, Text: text, Order: i + 1}
		entry.questions = append(entry.questions, q)
		s.questions[q.ID] = q
	}
	s.sessions[sess.ID] = entry
	log.Info().Str("module", "devserver.store").Str("session", sess.ID.String()).Int("questions", len(texts)).Msg("created session")
	return sess
}

func (s *Store) Session(id domain.ID) (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	return e.session, true
}

func (s *Store) Questions(id domain.ID) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return append([]domain.Question(nil), e.questions...), nil
}

// AddAnswer records an answer; evaluation is attached later with Evaluate.
func (s *Store) AddAnswer(questionID domain.ID, text string) (domain.ID, domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[questionID]
	if !ok {
		return "", domain.Question{}, ErrQuestionUnknown
	}
	a := &answer{id: s.nextIDLocked(), question: q, text: text}
	s.answers[q.SessionID] = append(s.answers[q.SessionID], a)
	return a.id, q, nil
}

func (s *Store) Evaluate(sessionID, answerID domain.ID, evaluation, emotion map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.answers[sessionID] {
		if a.id == answerID {
			a.evaluation = evaluation
			a.emotion = emotion
			return true
		}
	}
	return false
}

// Results joins questions with their answers in question order.
func (s *Store) Results(sessionID domain.ID) ([]domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}
	answers := append([]*answer(nil), s.answers[sessionID]...)
	sort.SliceStable(answers, func(i, j int) bool { return answers[i].question.Order < answers[j].question.Order })
	out := make([]domain.Result, 0, len(answers))
	for _, a := range answers {
		out = append(out, domain.Result{
			Question:   a.question.Text,
			Answer:     a.text,
			Evaluation: a.evaluation,
			Emotion:    a.emotion,
		})
	}
	return out, nil
}
