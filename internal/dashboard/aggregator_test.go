package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"nexus-terminal-go/internal/activity"
	"nexus-terminal-go/internal/dossier"
	"nexus-terminal-go/internal/gateway"
	"nexus-terminal-go/internal/models"

	"github.com/shopspring/decimal"
)

type fakeAccounts struct {
	accounts []models.Account
	err      error
	token    string
}

func (f *fakeAccounts) GetAccounts(_ context.Context, accessToken string) ([]models.Account, error) {
	f.token = accessToken
	return f.accounts, f.err
}

type fakeIssuer struct {
	mu            sync.Mutex
	products      []models.CardProduct
	listErr       error
	userErr       error
	productErr    error
	cardErr       error
	userCalls     []string
	productCalls  int
	cardProducts  []string
	productToken  string
	listCallCount int
}

func (f *fakeIssuer) ListCardProducts(context.Context) ([]models.CardProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCallCount++
	return f.products, f.listErr
}

func (f *fakeIssuer) CreateUser(_ context.Context, userToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls = append(f.userCalls, userToken)
	return f.userErr
}

func (f *fakeIssuer) CreateCardProduct(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.productCalls++
	if f.productErr != nil {
		return "", f.productErr
	}
	return f.productToken, nil
}

func (f *fakeIssuer) CreateCard(_ context.Context, userToken, productToken string) (*models.IssuedCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cardProducts = append(f.cardProducts, productToken)
	if f.cardErr != nil {
		return nil, f.cardErr
	}
	return &models.IssuedCard{
		Token:            "card_1",
		UserToken:        userToken,
		CardProductToken: productToken,
		LastFour:         "4242",
		Pan:              "1111222233334242",
		Expiration:       "0130",
		Cvv:              "123",
		State:            "ACTIVE",
	}, nil
}

type fakeLedger struct {
	mu       sync.Mutex
	payloads map[string]json.RawMessage
	errs     map[string]error
	gates    map[string]chan struct{}
	entered  chan string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		payloads: map[string]json.RawMessage{},
		errs:     map[string]error{},
		gates:    map[string]chan struct{}{},
		entered:  make(chan string, 16),
	}
}

func (f *fakeLedger) Fetch(_ context.Context, resource string) (json.RawMessage, error) {
	f.mu.Lock()
	gate := f.gates[resource]
	payload := f.payloads[resource]
	err := f.errs[resource]
	f.mu.Unlock()

	f.entered <- resource
	if gate != nil {
		<-gate
	}
	return payload, err
}

func sampleAccounts() []models.Account {
	return []models.Account{
		{Id: "a1", Name: "Checking", Type: "depository", Balance: models.Balance{Current: decimal.NewFromInt(500)}},
		{Id: "a2", Name: "Card", Type: "credit", Balance: models.Balance{Current: decimal.NewFromInt(120)}},
	}
}

func newTestAggregator(accounts *fakeAccounts, issuer *fakeIssuer, ledger *fakeLedger) (*Aggregator, *activity.Log) {
	log := activity.NewLog(activity.DefaultCapacity)
	return New(Config{
		Accounts:    accounts,
		Issuer:      issuer,
		Ledger:      ledger,
		Log:         log,
		AccessToken: "tok-123",
	}), log
}

func TestRefreshAppliesAllFetches(t *testing.T) {
	ledger := newFakeLedger()
	ledger.payloads["ledgers"] = json.RawMessage(`[{"id":"l1"}]`)
	accounts := &fakeAccounts{accounts: sampleAccounts()}
	issuer := &fakeIssuer{products: []models.CardProduct{{Token: "cp_1", Name: "Elite"}}}
	agg, _ := newTestAggregator(accounts, issuer, ledger)

	if err := agg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if accounts.token != "tok-123" {
		t.Errorf("accounts fetched with token %q", accounts.token)
	}
	view := agg.View()
	if len(view.Accounts) != 2 || len(view.CardProducts) != 1 {
		t.Errorf("view = %+v", view)
	}
	if view.Ledger.Resource != "ledgers" || string(view.Ledger.Payload) != `[{"id":"l1"}]` {
		t.Errorf("ledger = %+v", view.Ledger)
	}
	if !view.NetBalance.Equal(decimal.NewFromInt(380)) {
		t.Errorf("NetBalance = %s, want 380", view.NetBalance)
	}
	if view.Loading || view.LedgerLoading {
		t.Error("loading flags left set")
	}
}

func TestRefreshKeepsPartialResults(t *testing.T) {
	ledger := newFakeLedger()
	ledger.payloads["ledgers"] = json.RawMessage(`[]`)
	accounts := &fakeAccounts{accounts: sampleAccounts()}
	issuer := &fakeIssuer{listErr: &gateway.TransportError{Provider: gateway.Marqeta, Endpoint: "/cardproducts", Err: errors.New("connection refused")}}
	agg, log := newTestAggregator(accounts, issuer, ledger)

	err := agg.Refresh(context.Background())
	if err == nil {
		t.Fatal("expected refresh error")
	}

	view := agg.View()
	if len(view.Accounts) != 2 {
		t.Errorf("accounts not applied: %+v", view.Accounts)
	}
	if view.Ledger.Resource != "ledgers" {
		t.Errorf("ledger not applied: %+v", view.Ledger)
	}

	entries := log.Entries()
	if len(entries) == 0 || entries[0].Message != HandshakeErrorMessage || entries[0].Category != models.LogError {
		t.Errorf("log head = %+v", entries)
	}
}

func TestLedgerRejectionIsStoredAsPayload(t *testing.T) {
	ledger := newFakeLedger()
	ledger.payloads["ledgers"] = json.RawMessage(`{"errors":{"message":"unauthorized"}}`)
	ledger.errs["ledgers"] = &gateway.ProviderError{Provider: gateway.ModernTreasury, Status: 401, Message: "unauthorized"}
	agg, _ := newTestAggregator(&fakeAccounts{}, &fakeIssuer{}, ledger)

	if err := agg.Refresh(context.Background()); err != nil {
		t.Fatalf("ledger rejection should not fail the refresh: %v", err)
	}

	var got struct {
		Error bool            `json:"error"`
		Data  json.RawMessage `json:"data"`
	}
	view := agg.View()
	if err := json.Unmarshal(view.Ledger.Payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if !got.Error || !strings.Contains(string(got.Data), "unauthorized") {
		t.Errorf("payload = %s", view.Ledger.Payload)
	}
}

func TestLedgerTransportFailurePayload(t *testing.T) {
	ledger := newFakeLedger()
	ledger.errs["counterparties"] = errors.New("dial tcp: timeout")
	agg, _ := newTestAggregator(&fakeAccounts{}, &fakeIssuer{}, ledger)

	if err := agg.SelectResource(context.Background(), "counterparties"); err == nil {
		t.Fatal("expected error")
	}

	view := agg.View()
	if view.Ledger.Resource != "counterparties" {
		t.Errorf("resource = %q", view.Ledger.Resource)
	}
	want := `{"error":"dial tcp: timeout","status":"Proxy Node Rejected"}`
	if string(view.Ledger.Payload) != want {
		t.Errorf("payload = %s, want %s", view.Ledger.Payload, want)
	}
}

func TestSelectResourceRejectsUnknown(t *testing.T) {
	agg, _ := newTestAggregator(&fakeAccounts{}, &fakeIssuer{}, newFakeLedger())
	if err := agg.SelectResource(context.Background(), "wallets"); err == nil {
		t.Fatal("expected error")
	}
	if agg.View().SelectedResource != "ledgers" {
		t.Error("selection changed for unknown resource")
	}
}

func TestLedgerLastRequestedSelectionWins(t *testing.T) {
	ledger := newFakeLedger()
	release := make(chan struct{})
	ledger.gates["ledger_accounts"] = release
	ledger.payloads["ledger_accounts"] = json.RawMessage(`"A"`)
	ledger.payloads["payment_orders"] = json.RawMessage(`"B"`)
	agg, _ := newTestAggregator(&fakeAccounts{}, &fakeIssuer{}, ledger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		agg.SelectResource(context.Background(), "ledger_accounts")
	}()
	if got := <-ledger.entered; got != "ledger_accounts" {
		t.Fatalf("first fetch = %q", got)
	}

	if err := agg.SelectResource(context.Background(), "payment_orders"); err != nil {
		t.Fatalf("SelectResource: %v", err)
	}
	<-ledger.entered

	close(release)
	wg.Wait()

	view := agg.View()
	if view.Ledger.Resource != "payment_orders" || string(view.Ledger.Payload) != `"B"` {
		t.Errorf("ledger = %s %s, want payment_orders \"B\"", view.Ledger.Resource, view.Ledger.Payload)
	}
	if view.SelectedResource != "payment_orders" || view.LedgerLoading {
		t.Errorf("selected = %q loading = %v", view.SelectedResource, view.LedgerLoading)
	}
}

type gatedAccounts struct {
	mu      sync.Mutex
	calls   int
	results [][]models.Account
	entered chan int
	release chan struct{}
}

// GetAccounts blocks the first call until release is closed
func (g *gatedAccounts) GetAccounts(context.Context, string) ([]models.Account, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.mu.Unlock()

	g.entered <- call
	if call == 1 {
		<-g.release
	}
	return g.results[call-1], nil
}

func TestOverlappingRefreshKeepsLatestAccounts(t *testing.T) {
	stale := []models.Account{{Id: "old", Name: "Stale", Balance: models.Balance{Current: decimal.NewFromInt(1)}}}
	fresh := sampleAccounts()
	accounts := &gatedAccounts{
		results: [][]models.Account{stale, fresh},
		entered: make(chan int, 2),
		release: make(chan struct{}),
	}
	agg := New(Config{Accounts: accounts, Issuer: &fakeIssuer{}, Ledger: newFakeLedger()})

	done := make(chan error, 1)
	go func() { done <- agg.Refresh(context.Background()) }()
	if call := <-accounts.entered; call != 1 {
		t.Fatalf("first accounts call = %d", call)
	}

	if err := agg.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	<-accounts.entered

	close(accounts.release)
	if err := <-done; err != nil {
		t.Fatalf("first Refresh: %v", err)
	}

	view := agg.View()
	if len(view.Accounts) != 2 || view.Accounts[0].Id != "a1" {
		t.Errorf("accounts = %+v, want the later refresh's result", view.Accounts)
	}
	if !view.NetBalance.Equal(decimal.NewFromInt(380)) || view.Loading {
		t.Errorf("NetBalance = %s loading = %v", view.NetBalance, view.Loading)
	}
}

func TestMintFailureDoesNotRepeatUserCreation(t *testing.T) {
	ledger := newFakeLedger()
	issuer := &fakeIssuer{
		products: []models.CardProduct{{Token: "cp_existing"}},
		cardErr:  &gateway.ProviderError{Provider: gateway.Marqeta, Status: 400, Message: "bad card"},
	}
	agg, log := newTestAggregator(&fakeAccounts{}, issuer, ledger)
	if err := agg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	listCalls := issuer.listCallCount

	_, err := agg.MintCard(context.Background())
	var mintErr *MintError
	if !errors.As(err, &mintErr) || mintErr.Step != StepCreateCard {
		t.Fatalf("err = %v, want MintError at create_card", err)
	}

	if len(issuer.userCalls) != 1 {
		t.Errorf("user creation calls = %d, want 1", len(issuer.userCalls))
	}
	if issuer.productCalls != 0 {
		t.Errorf("card product created despite existing product")
	}
	if _, ok := agg.IssuedCard(); ok {
		t.Error("issued card set after failure")
	}
	if agg.View().IssuedCard != nil || agg.View().Minting {
		t.Error("view reports a card or an in-flight mint")
	}
	if issuer.listCallCount != listCalls {
		t.Error("dashboard refreshed after failed issuance")
	}
	if entries := log.Entries(); entries[0].Category != models.LogError {
		t.Errorf("log head = %+v", entries[0])
	}
}

func TestMintCreatesProductWhenNoneExists(t *testing.T) {
	issuer := &fakeIssuer{productToken: "cp_new"}
	agg, _ := newTestAggregator(&fakeAccounts{}, issuer, newFakeLedger())

	card, err := agg.MintCard(context.Background())
	if err != nil {
		t.Fatalf("MintCard: %v", err)
	}

	if issuer.productCalls != 1 || issuer.cardProducts[0] != "cp_new" {
		t.Errorf("product calls = %d, card products = %v", issuer.productCalls, issuer.cardProducts)
	}
	if !strings.HasPrefix(issuer.userCalls[0], "u_") || card.UserToken != issuer.userCalls[0] {
		t.Errorf("user token = %q, card user = %q", issuer.userCalls[0], card.UserToken)
	}
	stored, ok := agg.IssuedCard()
	if !ok || stored.Cvv != "123" || stored.Pan != "1111222233334242" {
		t.Errorf("issued = %+v", stored)
	}
	if issuer.listCallCount != 1 {
		t.Errorf("refresh after issuance not run: list calls = %d", issuer.listCallCount)
	}

	agg.DismissCard()
	if _, ok := agg.IssuedCard(); ok {
		t.Error("DismissCard left a card")
	}
}

func TestMintProductFailureStopsBeforeCard(t *testing.T) {
	issuer := &fakeIssuer{productErr: errors.New("quota")}
	agg, _ := newTestAggregator(&fakeAccounts{}, issuer, newFakeLedger())

	_, err := agg.MintCard(context.Background())
	var mintErr *MintError
	if !errors.As(err, &mintErr) || mintErr.Step != StepCreateCardProduct {
		t.Fatalf("err = %v", err)
	}
	if len(issuer.cardProducts) != 0 {
		t.Error("card created after product failure")
	}
}

type blockingIssuer struct {
	fakeIssuer
	entered chan struct{}
	release chan struct{}
}

func (b *blockingIssuer) CreateUser(ctx context.Context, userToken string) error {
	b.entered <- struct{}{}
	<-b.release
	return b.fakeIssuer.CreateUser(ctx, userToken)
}

func TestMintRejectsReentry(t *testing.T) {
	issuer := &blockingIssuer{
		fakeIssuer: fakeIssuer{products: []models.CardProduct{{Token: "cp_1"}}},
		entered:    make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
	agg := New(Config{Accounts: &fakeAccounts{}, Issuer: issuer, Ledger: newFakeLedger()})

	done := make(chan error, 1)
	go func() {
		_, err := agg.MintCard(context.Background())
		done <- err
	}()
	<-issuer.entered

	if _, err := agg.MintCard(context.Background()); !errors.Is(err, ErrMintInProgress) {
		t.Errorf("err = %v, want ErrMintInProgress", err)
	}
	if !agg.View().Minting {
		t.Error("view does not report minting")
	}

	close(issuer.release)
	if err := <-done; err != nil {
		t.Fatalf("first mint: %v", err)
	}
}

func TestDossierFrozenAgainstRefresh(t *testing.T) {
	accounts := &fakeAccounts{accounts: sampleAccounts()}
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	agg := New(Config{
		Accounts: accounts,
		Issuer:   &fakeIssuer{},
		Ledger:   newFakeLedger(),
		Dossier:  &dossier.Generator{Now: func() time.Time { return at }, NewId: func() string { return "NEX-FIXED001" }},
	})
	if err := agg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	snap, err := agg.OpenDossier()
	if err != nil {
		t.Fatalf("OpenDossier: %v", err)
	}
	if snap.Id != "NEX-FIXED001" || !snap.TotalLiquidity.Equal(decimal.NewFromInt(620)) {
		t.Errorf("snapshot = %s %s", snap.Id, snap.TotalLiquidity)
	}

	accounts.accounts = []models.Account{{Id: "a9", Balance: models.Balance{Current: decimal.NewFromInt(1)}}}
	if err := agg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	current, ok := agg.CurrentDossier()
	if !ok || !current.TotalLiquidity.Equal(decimal.NewFromInt(620)) || len(current.Accounts) != 2 {
		t.Errorf("dossier changed after refresh: %+v", current)
	}

	agg.CloseDossier()
	if _, ok := agg.CurrentDossier(); ok {
		t.Error("CloseDossier left a snapshot")
	}
}

func TestClosedAggregatorDropsResults(t *testing.T) {
	ledger := newFakeLedger()
	release := make(chan struct{})
	ledger.gates["ledgers"] = release
	ledger.payloads["ledgers"] = json.RawMessage(`"late"`)
	agg, _ := newTestAggregator(&fakeAccounts{accounts: sampleAccounts()}, &fakeIssuer{}, ledger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		agg.SelectResource(context.Background(), "ledgers")
	}()
	<-ledger.entered
	agg.Close()
	close(release)
	<-done

	if payload := agg.View().Ledger.Payload; payload != nil {
		t.Errorf("late result applied after close: %s", payload)
	}
	if err := agg.Refresh(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Refresh after close = %v", err)
	}
	if _, err := agg.MintCard(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("MintCard after close = %v", err)
	}
}
