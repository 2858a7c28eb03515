package workflow

import (
	"context"
	"sync"

	"nexus-terminal-go/internal/plaid"

	"go.uber.org/zap"
)

// LinkResult is the outcome reported by a bank-linking widget. Err is set on
// failure or cancellation; otherwise PublicToken carries the token.
type LinkResult struct {
	PublicToken string
	Err         error
}

// LinkWidget is the external bank-linking UI. Open starts a link for the
// given token and eventually delivers exactly one result on the channel.
type LinkWidget interface {
	Open(ctx context.Context, linkToken string) <-chan LinkResult
}

// CallbackWidget hands the link token to an out-of-process UI and waits for
// that UI to post its result back through Deliver.
type CallbackWidget struct {
	mu        sync.Mutex
	pending   chan LinkResult
	linkToken string
}

func NewCallbackWidget() *CallbackWidget {
	return &CallbackWidget{}
}

// Open registers a pending link. A link that was still pending is cancelled.
func (w *CallbackWidget) Open(_ context.Context, linkToken string) <-chan LinkResult {
	ch := make(chan LinkResult, 1)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending <- LinkResult{Err: ErrLinkCancelled}
	}
	w.pending = ch
	w.linkToken = linkToken
	return ch
}

// Deliver posts the UI result for the pending link. Each link accepts one result.
func (w *CallbackWidget) Deliver(result LinkResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return ErrNoPendingLink
	}
	w.pending <- result
	w.pending = nil
	w.linkToken = ""
	return nil
}

// Cancel reports cancellation for the pending link, if any
func (w *CallbackWidget) Cancel() {
	if err := w.Deliver(LinkResult{Err: ErrLinkCancelled}); err == nil {
		zap.L().Debug("Pending bank link cancelled")
	}
}

// Pending returns the link token awaiting a result
func (w *CallbackWidget) Pending() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.linkToken, w.pending != nil
}

// SandboxWidget completes a link without any UI by asking the aggregator
// sandbox to mint a public token directly
type SandboxWidget struct {
	client *plaid.Client
}

func NewSandboxWidget(client *plaid.Client) *SandboxWidget {
	return &SandboxWidget{client: client}
}

func (w *SandboxWidget) Open(ctx context.Context, _ string) <-chan LinkResult {
	ch := make(chan LinkResult, 1)
	go func() {
		token, err := w.client.CreateSandboxPublicToken(ctx)
		ch <- LinkResult{PublicToken: token, Err: err}
	}()
	return ch
}
