package scrape

import (
	"fmt"
	"time"

	"github.com/feedsync/backend/internal/domain/shared"
)

// State is a step of the storefront scraping session
type State string

const (
	StateUninitialized  State = "uninitialized"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StatePaginating     State = "paginating"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// allowed lists the forward transitions. Failed is reachable from every
// non-terminal state.
var allowed = map[State]State{
	StateUninitialized:  StateAuthenticating,
	StateAuthenticating: StateAuthenticated,
	StateAuthenticated:  StatePaginating,
	StatePaginating:     StateCompleted,
}

// IsTerminal reports whether no further transitions are possible
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Transition records one state change
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Session tracks the state of one scraping job
type Session struct {
	State       State
	Pages       int
	History     []Transition
	StartedAt   time.Time
	CompletedAt *time.Time
}

// NewSession creates a session in the uninitialized state
func NewSession() *Session {
	return &Session{
		State:     StateUninitialized,
		StartedAt: time.Now(),
	}
}

// Advance moves the session to the next state
func (s *Session) Advance(to State) error {
	if s.State.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("scrape session already %s", s.State))
	}
	if to != StateFailed && allowed[s.State] != to {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("cannot move scrape session from %s to %s", s.State, to))
	}

	now := time.Now()
	s.History = append(s.History, Transition{From: s.State, To: to, At: now})
	s.State = to
	if to.IsTerminal() {
		s.CompletedAt = &now
	}
	return nil
}

// Request is a scrape job invocation
type Request struct {
	Username string
	Password string
	TestMode bool
}

// Result is returned to the caller of a scrape job
type Result struct {
	Success       bool   `json:"success"`
	ProductsFound int    `json:"products_found"`
	Output        string `json:"output"`
}
