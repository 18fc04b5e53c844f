package stubserver

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
)

// Page is the state of a session's single page
type Page struct {
	URL   string
	Title string
	HTML  string
}

// BrowserSession is one started browser held in memory.
type BrowserSession struct {
	ID        string
	BrowserID string
	Headless  bool
	StartedAt time.Time
	Page      Page
}

// Call is one journal entry
type Call struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	SessionID string `json:"sessionId"`
	Status    int    `json:"status"`
}

// Store keeps sessions and the call journal.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*BrowserSession
	journal  []Call
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{sessions: make(map[string]*BrowserSession)}
}

// Start registers a new session on about:blank
func (s *Store) Start(id string, headless bool) (*BrowserSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; exists {
		return nil, ErrSessionExists
	}
	bs := &BrowserSession{
		ID:        id,
		BrowserID: uuid.New().String(),
		Headless:  headless,
		StartedAt: time.Now(),
		Page:      blankPage(),
	}
	s.sessions[id] = bs
	return bs, nil
}

// Stop removes a session
func (s *Store) Stop(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; !exists {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Page returns a copy of the session's page
func (s *Store) Page(id string) (Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bs, exists := s.sessions[id]
	if !exists {
		return Page{}, ErrSessionNotFound
	}
	return bs.Page, nil
}

// SetPage replaces the session's page
func (s *Store) SetPage(id string, page Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bs, exists := s.sessions[id]
	if !exists {
		return ErrSessionNotFound
	}
	bs.Page = page
	return nil
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) record(c Call) {
	s.mu.Lock()
	s.journal = append(s.journal, c)
	s.mu.Unlock()
}

// Calls returns a copy of the journal
func (s *Store) Calls() []Call {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Call, len(s.journal))
	copy(out, s.journal)
	return out
}
