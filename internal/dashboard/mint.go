package dashboard

import (
	"context"
	"errors"
	"fmt"

	"nexus-terminal-go/internal/marqeta"
	"nexus-terminal-go/internal/models"

	"go.uber.org/zap"
)

var (
	ErrMintInProgress = errors.New("card issuance already in progress")
	ErrClosed         = errors.New("dashboard closed")
)

// MintStep names a stage of card issuance
type MintStep string

const (
	StepCreateUser        MintStep = "create_user"
	StepCreateCardProduct MintStep = "create_card_product"
	StepCreateCard        MintStep = "create_card"
)

// MintError reports the issuance step that failed. Steps before it are not
// rolled back and none are retried.
type MintError struct {
	Step MintStep
	Err  error
}

func (e *MintError) Error() string {
	return fmt.Sprintf("card issuance failed at %s: %v", e.Step, e.Err)
}

func (e *MintError) Unwrap() error { return e.Err }

// MintCard provisions a cardholder, a card product when none exists yet and
// a card with PAN and CVV disclosed. Any failing step aborts the sequence and
// leaves no issued card; the caller has to start over.
func (a *Aggregator) MintCard(ctx context.Context) (models.IssuedCard, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return models.IssuedCard{}, ErrClosed
	}
	if a.minting {
		a.mu.Unlock()
		return models.IssuedCard{}, ErrMintInProgress
	}
	a.minting = true
	a.issued = nil
	productToken := ""
	if len(a.products) > 0 {
		productToken = a.products[0].Token
	}
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.minting = false
		a.mu.Unlock()
	}()

	card, err := a.mint(ctx, productToken)
	if err != nil {
		a.log.Append(err.Error(), models.LogError)
		zap.L().Error("Card issuance failed", zap.Error(err))
		return models.IssuedCard{}, err
	}

	a.apply(func() { a.issued = &card })
	zap.L().Info("Card issued",
		zap.String("card_token", card.Token),
		zap.String("card_product_token", card.CardProductToken))

	if err := a.Refresh(ctx); err != nil {
		zap.L().Warn("Dashboard refresh after issuance failed", zap.Error(err))
	}
	return card, nil
}

func (a *Aggregator) mint(ctx context.Context, productToken string) (models.IssuedCard, error) {
	userToken := marqeta.NewToken("u_")
	if err := a.issuer.CreateUser(ctx, userToken); err != nil {
		return models.IssuedCard{}, &MintError{Step: StepCreateUser, Err: err}
	}

	if productToken == "" {
		token, err := a.issuer.CreateCardProduct(ctx)
		if err != nil {
			return models.IssuedCard{}, &MintError{Step: StepCreateCardProduct, Err: err}
		}
		productToken = token
	}

	card, err := a.issuer.CreateCard(ctx, userToken, productToken)
	if err != nil {
		return models.IssuedCard{}, &MintError{Step: StepCreateCard, Err: err}
	}
	return *card, nil
}
