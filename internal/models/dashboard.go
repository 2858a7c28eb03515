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

package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Balance holds the normalized balances of an aggregated account
type Balance struct {
	Current   decimal.Decimal     `json:"current"`
	Available decimal.NullDecimal `json:"available"`
	Limit     decimal.NullDecimal `json:"limit"`
	Currency  string              `json:"currency"`
}

// Account is the aggregator read model
type Account struct {
	Id      string  `json:"id"`
	Name    string  `json:"name"`
	Mask    string  `json:"mask"`
	Type    string  `json:"type"`
	Subtype string  `json:"subtype"`
	Balance Balance `json:"balance"`
}

// CardProduct is an issuer card program as returned upstream
type CardProduct struct {
	Token       string          `json:"token"`
	Name        string          `json:"name"`
	Active      bool            `json:"active"`
	CreatedTime string          `json:"created_time,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// IssuedCard carries the disclosed fields of a just-minted card
type IssuedCard struct {
	Token            string `json:"token"`
	UserToken        string `json:"user_token"`
	CardProductToken string `json:"card_product_token"`
	LastFour         string `json:"last_four"`
	Pan              string `json:"pan,omitempty"`
	Expiration       string `json:"expiration"`
	Cvv              string `json:"cvv,omitempty"`
	State            string `json:"state"`
}

// LedgerSnapshot is the last response for the selected ledger sub-resource
type LedgerSnapshot struct {
	Resource string          `json:"resource"`
	Payload  json.RawMessage `json:"payload"`
}

// Clone returns a copy that shares no bytes with the receiver
func (s LedgerSnapshot) Clone() LedgerSnapshot {
	out := LedgerSnapshot{Resource: s.Resource}
	if s.Payload != nil {
		out.Payload = append(json.RawMessage(nil), s.Payload...)
	}
	return out
}

// DashboardView is a point-in-time read of the dashboard aggregator
type DashboardView struct {
	Accounts         []Account       `json:"accounts"`
	CardProducts     []CardProduct   `json:"card_products"`
	Ledger           LedgerSnapshot  `json:"ledger"`
	SelectedResource string          `json:"selected_resource"`
	IssuedCard       *IssuedCard     `json:"issued_card,omitempty"`
	NetBalance       decimal.Decimal `json:"net_balance"`
	Loading          bool            `json:"loading"`
	LedgerLoading    bool            `json:"ledger_loading"`
	Minting          bool            `json:"minting"`
}

// DossierSnapshot is a frozen copy of dashboard data taken when the dossier opens
type DossierSnapshot struct {
	Id             string          `json:"id"`
	CapturedAt     time.Time       `json:"captured_at"`
	Accounts       []Account       `json:"accounts"`
	CardProducts   []CardProduct   `json:"card_products"`
	Ledger         LedgerSnapshot  `json:"ledger"`
	TotalLiquidity decimal.Decimal `json:"total_liquidity"`
}
