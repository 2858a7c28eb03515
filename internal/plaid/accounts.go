package plaid

import (
	"nexus-terminal-go/internal/models"

	"github.com/shopspring/decimal"
)

const (
	defaultAccountName    = "Untitled Account"
	defaultAccountMask    = "0000"
	defaultAccountType    = "depository"
	defaultAccountSubtype = "checking"
	defaultCurrency       = "USD"
)

// RawAccount is an account record as the aggregator returns it
type RawAccount struct {
	AccountId string       `json:"account_id"`
	Name      string       `json:"name"`
	Mask      string       `json:"mask"`
	Type      string       `json:"type"`
	Subtype   string       `json:"subtype"`
	Balances  *RawBalances `json:"balances"`
}

// RawBalances holds raw balance fields; any of them may be null or absent
type RawBalances struct {
	Current         decimal.NullDecimal `json:"current"`
	Available       decimal.NullDecimal `json:"available"`
	Limit           decimal.NullDecimal `json:"limit"`
	IsoCurrencyCode string              `json:"iso_currency_code"`
}

// NormalizeAccount maps a raw record onto the Account read model, filling defaults
func NormalizeAccount(raw RawAccount) models.Account {
	account := models.Account{
		Id:      raw.AccountId,
		Name:    orDefault(raw.Name, defaultAccountName),
		Mask:    orDefault(raw.Mask, defaultAccountMask),
		Type:    orDefault(raw.Type, defaultAccountType),
		Subtype: orDefault(raw.Subtype, defaultAccountSubtype),
		Balance: models.Balance{
			Current:  decimal.Zero,
			Currency: defaultCurrency,
		},
	}

	if b := raw.Balances; b != nil {
		if b.Current.Valid {
			account.Balance.Current = b.Current.Decimal
		}
		account.Balance.Available = b.Available
		account.Balance.Limit = b.Limit
		account.Balance.Currency = orDefault(b.IsoCurrencyCode, defaultCurrency)
	}
	return account
}

// NetBalance nets depository accounts positively and every other type negatively
func NetBalance(accounts []models.Account) decimal.Decimal {
	net := decimal.Zero
	for _, a := range accounts {
		if a.Type == defaultAccountType {
			net = net.Add(a.Balance.Current)
		} else {
			net = net.Sub(a.Balance.Current)
		}
	}
	return net
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
