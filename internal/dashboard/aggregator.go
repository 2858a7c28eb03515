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

package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"nexus-terminal-go/internal/activity"
	"nexus-terminal-go/internal/dossier"
	"nexus-terminal-go/internal/gateway"
	"nexus-terminal-go/internal/models"
	"nexus-terminal-go/internal/plaid"
	"nexus-terminal-go/internal/treasury"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HandshakeErrorMessage is logged when a refresh fails at the top level
const HandshakeErrorMessage = "Infrastructure handshake error"

// AccountSource reads linked bank accounts
type AccountSource interface {
	GetAccounts(ctx context.Context, accessToken string) ([]models.Account, error)
}

// CardIssuer provisions cardholders, card products and cards
type CardIssuer interface {
	ListCardProducts(ctx context.Context) ([]models.CardProduct, error)
	CreateUser(ctx context.Context, userToken string) error
	CreateCardProduct(ctx context.Context) (string, error)
	CreateCard(ctx context.Context, userToken, productToken string) (*models.IssuedCard, error)
}

// LedgerSource lists ledger sub-resources
type LedgerSource interface {
	Fetch(ctx context.Context, resource string) (json.RawMessage, error)
}

// Config contains configuration for an Aggregator
type Config struct {
	Accounts    AccountSource
	Issuer      CardIssuer
	Ledger      LedgerSource
	Log         *activity.Log
	AccessToken string
	Dossier     *dossier.Generator
}

// Aggregator holds the dashboard read model for one linked session
type Aggregator struct {
	accountSource AccountSource
	issuer        CardIssuer
	ledgerSource  LedgerSource
	log           *activity.Log
	accessToken   string
	generator     dossier.Generator

	mu         sync.Mutex
	accounts   []models.Account
	products   []models.CardProduct
	ledger     models.LedgerSnapshot
	selected   string
	ledgerSeq  uint64
	refreshSeq uint64
	issued     *models.IssuedCard
	dossier    *models.DossierSnapshot
	refreshing int
	ledgerBusy bool
	minting    bool
	closed     bool

	// refresh generation whose accounts and products are shown
	accountsGen uint64
	productsGen uint64
}

// New creates an Aggregator. Nothing is fetched until Refresh.
func New(cfg Config) *Aggregator {
	generator := dossier.Generator{Now: time.Now, NewId: dossier.NewId}
	if cfg.Dossier != nil {
		if cfg.Dossier.Now != nil {
			generator.Now = cfg.Dossier.Now
		}
		if cfg.Dossier.NewId != nil {
			generator.NewId = cfg.Dossier.NewId
		}
	}
	log := cfg.Log
	if log == nil {
		log = activity.NewLog(activity.DefaultCapacity)
	}
	return &Aggregator{
		accountSource: cfg.Accounts,
		issuer:        cfg.Issuer,
		ledgerSource:  cfg.Ledger,
		log:           log,
		accessToken:   cfg.AccessToken,
		generator:     generator,
		accounts:      []models.Account{},
		products:      []models.CardProduct{},
		selected:      treasury.DefaultResource,
	}
}

// Refresh runs the three independent fetches concurrently. Each fetch
// applies its own result; a failure in one never rolls back the others.
// When refreshes overlap, a leg never replaces data from a later refresh.
func (a *Aggregator) Refresh(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.refreshing++
	a.refreshSeq++
	seq := a.refreshSeq
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.refreshing--
		a.mu.Unlock()
	}()

	var g errgroup.Group

	g.Go(func() error {
		accounts, err := a.accountSource.GetAccounts(ctx, a.accessToken)
		if err != nil {
			return fmt.Errorf("failed to fetch accounts: %w", err)
		}
		a.applyLeg("accounts", seq, &a.accountsGen, func() { a.accounts = accounts })
		return nil
	})

	g.Go(func() error {
		products, err := a.issuer.ListCardProducts(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch card products: %w", err)
		}
		a.applyLeg("card_products", seq, &a.productsGen, func() { a.products = products })
		return nil
	})

	g.Go(func() error {
		err := a.SelectResource(ctx, treasury.DefaultResource)
		var rejected *gateway.ProviderError
		if errors.As(err, &rejected) {
			// the rejection payload is already the snapshot
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", treasury.DefaultResource, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		a.log.Append(HandshakeErrorMessage, models.LogError)
		zap.L().Error("Dashboard refresh failed", zap.Error(err))
		return err
	}

	zap.L().Debug("Dashboard refreshed")
	return nil
}

// SelectResource makes name the active ledger sub-resource and fetches it.
// Only the most recently requested selection is applied; results of
// superseded requests are dropped.
func (a *Aggregator) SelectResource(ctx context.Context, name string) error {
	if !treasury.ValidResource(name) {
		return fmt.Errorf("%w: %q", treasury.ErrUnknownResource, name)
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.ledgerSeq++
	seq := a.ledgerSeq
	a.selected = name
	a.ledgerBusy = true
	a.mu.Unlock()

	payload, err := a.ledgerSource.Fetch(ctx, name)
	snapshot := models.LedgerSnapshot{Resource: name, Payload: ledgerPayload(payload, err)}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || seq != a.ledgerSeq {
		zap.L().Debug("Discarding superseded ledger result",
			zap.String("resource", name),
			zap.Uint64("seq", seq))
		return err
	}
	a.ledger = snapshot
	a.ledgerBusy = false
	return err
}

// ledgerPayload shapes what the explorer shows for a completed fetch
func ledgerPayload(payload json.RawMessage, err error) json.RawMessage {
	if err == nil {
		return payload
	}

	var rejected *gateway.ProviderError
	if errors.As(err, &rejected) {
		data := payload
		if len(data) == 0 {
			data = rejected.Payload
		}
		if len(data) == 0 {
			data = json.RawMessage("null")
		}
		out, _ := json.Marshal(struct {
			Error bool            `json:"error"`
			Data  json.RawMessage `json:"data"`
		}{Error: true, Data: data})
		return out
	}

	out, _ := json.Marshal(struct {
		Error  string `json:"error"`
		Status string `json:"status"`
	}{Error: err.Error(), Status: "Proxy Node Rejected"})
	return out
}

// View returns a copy of the current dashboard state
func (a *Aggregator) View() models.DashboardView {
	a.mu.Lock()
	defer a.mu.Unlock()

	view := models.DashboardView{
		Accounts:         append([]models.Account{}, a.accounts...),
		CardProducts:     append([]models.CardProduct{}, a.products...),
		Ledger:           a.ledger.Clone(),
		SelectedResource: a.selected,
		NetBalance:       plaid.NetBalance(a.accounts),
		Loading:          a.refreshing > 0,
		LedgerLoading:    a.ledgerBusy,
		Minting:          a.minting,
	}
	if a.issued != nil {
		card := *a.issued
		view.IssuedCard = &card
	}
	return view
}

// IssuedCard returns the most recently minted card, if any
func (a *Aggregator) IssuedCard() (models.IssuedCard, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.issued == nil {
		return models.IssuedCard{}, false
	}
	return *a.issued, true
}

// DismissCard clears the issued card result
func (a *Aggregator) DismissCard() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.issued = nil
}

// OpenDossier freezes the current dashboard data into a new snapshot
func (a *Aggregator) OpenDossier() (models.DossierSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return models.DossierSnapshot{}, ErrClosed
	}
	snap := a.generator.Generate(a.accounts, a.products, a.ledger)
	a.dossier = &snap
	zap.L().Info("Dossier generated", zap.String("dossier_id", snap.Id))
	return snap, nil
}

// CurrentDossier returns the open snapshot, if any
func (a *Aggregator) CurrentDossier() (models.DossierSnapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dossier == nil {
		return models.DossierSnapshot{}, false
	}
	return *a.dossier, true
}

// CloseDossier discards the open snapshot
func (a *Aggregator) CloseDossier() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dossier = nil
}

// Close stops the aggregator from applying any further results
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

func (a *Aggregator) apply(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	fn()
}

// applyLeg stores one refresh leg unless a later refresh already stored it
func (a *Aggregator) applyLeg(leg string, seq uint64, applied *uint64, fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if seq < *applied {
		zap.L().Debug("Discarding superseded refresh result",
			zap.String("leg", leg),
			zap.Uint64("seq", seq),
			zap.Uint64("applied", *applied))
		return
	}
	*applied = seq
	fn()
}
