/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"nexus-terminal-go/internal/activity"
	"nexus-terminal-go/internal/dashboard"
	"nexus-terminal-go/internal/gateway"
	"nexus-terminal-go/internal/marqeta"
	"nexus-terminal-go/internal/models"
	"nexus-terminal-go/internal/plaid"
	"nexus-terminal-go/internal/treasury"

	"go.uber.org/zap"
)

// CredentialsInitializedMessage is logged once the three bundles are accepted
const CredentialsInitializedMessage = "Stack credentials initialized."

// Controller owns the single operator session and drives it through the
// handshake: credentials, link token, bank link, token exchange, dashboard.
type Controller struct {
	gw          *gateway.Gateway
	logCapacity int
	profile     models.ProviderProfile

	mu      sync.Mutex
	session *session
}

// NewController creates a controller in the CREDENTIALS state
func NewController(gw *gateway.Gateway, profile models.ProviderProfile) *Controller {
	logCapacity := activity.DefaultCapacity
	if gw.Log() != nil {
		logCapacity = gw.Log().Capacity()
	}
	return &Controller{
		gw:          gw,
		logCapacity: logCapacity,
		profile:     profile.WithDefaults(),
		session:     newSession(logCapacity),
	}
}

// Log returns the activity log of the current session
func (c *Controller) Log() *activity.Log {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.log
}

// State returns the current workflow state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.state
}

// Snapshot returns the session as the operator sees it
func (c *Controller) Snapshot() SessionView {
	c.mu.Lock()
	s := c.session
	view := SessionView{
		State:     s.state,
		Tokens:    s.tokens,
		LastError: s.lastError,
		Busy:      s.busy,
	}
	c.mu.Unlock()

	view.RelayURL, view.RelayEnabled = c.gw.Relay()
	return view
}

// SubmitCredentials stores the three provider bundles. Incomplete input is
// rejected with a *models.ValidationError and never reaches a provider.
func (c *Controller) SubmitCredentials(creds models.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	if s.state != StateCredentials {
		return fmt.Errorf("%w: credentials already submitted (state %s)", ErrInvalidTransition, s.state)
	}

	s.credentials = creds
	s.gateway = c.gw.WithCredentials(creds).WithLog(s.log)
	s.lastError = ""
	s.state = StateLinkTokenPending

	s.log.Append(CredentialsInitializedMessage, models.LogResponse)
	zap.L().Info("Credentials accepted", zap.String("plaid_environment", string(creds.Plaid.Environment)))
	return nil
}

// RequestLinkToken asks the aggregator for a link token. On failure the
// session stays in LINK_TOKEN_PENDING and the action can be retried.
func (c *Controller) RequestLinkToken(ctx context.Context) (string, error) {
	s, err := c.begin(StateLinkTokenPending)
	if err != nil {
		return "", err
	}

	linkToken, callErr := plaid.NewClient(s.gateway, c.profile).CreateLinkToken(ctx)

	return linkToken, c.finish(s, callErr, func() {
		s.tokens.LinkToken = linkToken
		s.state = StateLinkUIPending
	})
}

// LaunchLink opens the bank-linking widget with the stored link token. The
// widget result is consumed in the background; the returned channel yields
// the outcome of CompleteLink once the widget reports back.
func (c *Controller) LaunchLink(ctx context.Context, widget LinkWidget) (<-chan error, error) {
	c.mu.Lock()
	s := c.session
	if s.state != StateLinkUIPending {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: no link token (state %s)", ErrInvalidTransition, s.state)
	}
	if s.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	linkToken := s.tokens.LinkToken
	c.mu.Unlock()

	results := widget.Open(ctx, linkToken)
	done := make(chan error, 1)
	go func() {
		var result LinkResult
		select {
		case result = <-results:
		case <-ctx.Done():
			result = LinkResult{Err: fmt.Errorf("%w: %v", ErrLinkCancelled, ctx.Err())}
		}
		done <- c.completeLink(s, result)
	}()
	return done, nil
}

// CompleteLink applies a bank-linking widget outcome to the current session.
// A failure or cancellation is surfaced and does not advance.
func (c *Controller) CompleteLink(result LinkResult) error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	return c.completeLink(s, result)
}

func (c *Controller) completeLink(s *session, result LinkResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != s {
		zap.L().Debug("Discarding link result for a reset session")
		return ErrSessionReset
	}
	if s.state != StateLinkUIPending {
		return fmt.Errorf("%w: not awaiting a bank link (state %s)", ErrInvalidTransition, s.state)
	}

	err := result.Err
	if err == nil && result.PublicToken == "" {
		err = ErrLinkCancelled
	}
	if err != nil {
		s.lastError = err.Error()
		s.log.Append(err.Error(), models.LogError)
		zap.L().Warn("Bank link did not complete", zap.Error(err))
		return err
	}

	s.tokens.PublicToken = result.PublicToken
	s.lastError = ""
	s.state = StateExchangePending
	zap.L().Info("Bank link completed")
	return nil
}

// ExchangeToken trades the public token for an access token, opens the
// dashboard and runs its first refresh. Refresh failures are logged by the
// dashboard and do not undo the transition.
func (c *Controller) ExchangeToken(ctx context.Context) error {
	s, err := c.begin(StateExchangePending)
	if err != nil {
		return err
	}

	accessToken, callErr := plaid.NewClient(s.gateway, c.profile).ExchangePublicToken(ctx, s.tokens.PublicToken)

	var agg *dashboard.Aggregator
	if err := c.finish(s, callErr, func() {
		s.tokens.AccessToken = accessToken
		s.state = StateDashboard
		agg = c.newAggregator(s)
		s.dashboard = agg
	}); err != nil {
		return err
	}

	if err := agg.Refresh(ctx); err != nil {
		zap.L().Warn("Initial dashboard refresh incomplete", zap.Error(err))
	}
	return nil
}

func (c *Controller) newAggregator(s *session) *dashboard.Aggregator {
	return dashboard.New(dashboard.Config{
		Accounts:    plaid.NewClient(s.gateway, c.profile),
		Issuer:      marqeta.NewClient(s.gateway, c.profile),
		Ledger:      treasury.NewClient(s.gateway),
		Log:         s.log,
		AccessToken: s.tokens.AccessToken,
	})
}

// Dashboard returns the aggregator of a session that reached DASHBOARD
func (c *Controller) Dashboard() (*dashboard.Aggregator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.state != StateDashboard || c.session.dashboard == nil {
		return nil, fmt.Errorf("%w: dashboard not open (state %s)", ErrNotReady, c.session.state)
	}
	return c.session.dashboard, nil
}

// SandboxWidget returns a headless link widget bound to the submitted
// aggregator credentials
func (c *Controller) SandboxWidget() (*SandboxWidget, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.gateway == nil {
		return nil, fmt.Errorf("%w: credentials not submitted", ErrNotReady)
	}
	return NewSandboxWidget(plaid.NewClient(c.session.gateway, c.profile)), nil
}

// SetRelay changes the relay for every provider call. An open dashboard is
// refreshed through the new route.
func (c *Controller) SetRelay(ctx context.Context, relayURL string, enabled bool) error {
	c.gw.SetRelay(relayURL, enabled)
	zap.L().Info("Relay updated", zap.String("relay_url", relayURL), zap.Bool("enabled", enabled))

	agg, err := c.Dashboard()
	if err != nil {
		return nil
	}
	return agg.Refresh(ctx)
}

// Reset discards the whole session, including tokens, dashboard data and
// the activity log. The new session starts with an empty log of its own;
// results of in-flight calls are ignored once they land.
func (c *Controller) Reset() {
	c.mu.Lock()
	old := c.session
	c.session = newSession(c.logCapacity)
	c.mu.Unlock()

	if old.dashboard != nil {
		old.dashboard.Close()
	}
	old.log.Flush()
	zap.L().Info("Session reset", zap.String("previous_state", string(old.state)))
}

// begin claims the session for an action that is only valid in state want
func (c *Controller) begin(want State) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	if s.busy {
		return nil, ErrBusy
	}
	if s.state != want {
		return nil, fmt.Errorf("%w: expected %s, in %s", ErrInvalidTransition, want, s.state)
	}
	s.busy = true
	s.lastError = ""
	return s, nil
}

// finish releases the session claimed by begin and applies onSuccess when
// the call succeeded and the session was not reset meanwhile
func (c *Controller) finish(s *session, callErr error, onSuccess func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.busy = false

	if c.session != s {
		zap.L().Debug("Discarding result for a reset session", zap.NamedError("call_error", callErr))
		return ErrSessionReset
	}
	if callErr != nil {
		s.lastError = errorText(callErr)
		return callErr
	}
	onSuccess()
	return nil
}

// errorText is the operator-facing message of a failed call
func errorText(err error) string {
	var rejected *gateway.ProviderError
	if errors.As(err, &rejected) && rejected.Message != "" {
		return rejected.Message
	}
	return err.Error()
}
