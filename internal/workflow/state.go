package workflow

import (
	"errors"

	"nexus-terminal-go/internal/activity"
	"nexus-terminal-go/internal/dashboard"
	"nexus-terminal-go/internal/gateway"
	"nexus-terminal-go/internal/models"
)

// State is a step of the onboarding handshake
type State string

const (
	StateCredentials      State = "CREDENTIALS"
	StateLinkTokenPending State = "LINK_TOKEN_PENDING"
	StateLinkUIPending    State = "LINK_UI_PENDING"
	StateExchangePending  State = "EXCHANGE_PENDING"
	StateDashboard        State = "DASHBOARD"
)

var (
	ErrInvalidTransition = errors.New("action not allowed in current state")
	ErrBusy              = errors.New("another action is in flight")
	ErrNotReady          = errors.New("session not ready")
	ErrLinkCancelled     = errors.New("bank link cancelled")
	ErrNoPendingLink     = errors.New("no bank link awaiting a result")
	ErrSessionReset      = errors.New("session was reset")
)

// session is the whole mutable state of one operator run. A reset replaces
// the pointer, so work started against an older session can detect that its
// result no longer applies. Each session records to its own log; traffic
// that lands after a reset goes to the discarded one.
type session struct {
	state       State
	credentials models.Credentials
	tokens      models.TokenState
	lastError   string
	busy        bool
	log         *activity.Log
	gateway     *gateway.Gateway
	dashboard   *dashboard.Aggregator
}

func newSession(logCapacity int) *session {
	return &session{state: StateCredentials, log: activity.NewLog(logCapacity)}
}

// SessionView is a read-only snapshot of the session
type SessionView struct {
	State        State             `json:"state"`
	Tokens       models.TokenState `json:"tokens"`
	LastError    string            `json:"last_error,omitempty"`
	Busy         bool              `json:"busy"`
	RelayURL     string            `json:"relay_url"`
	RelayEnabled bool              `json:"relay_enabled"`
}
