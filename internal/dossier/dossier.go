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

package dossier

import (
	"encoding/json"
	"strings"
	"time"

	"nexus-terminal-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Generator builds dossier snapshots. The id and capture time are fixed at
// generation and never recomputed.
type Generator struct {
	Now   func() time.Time
	NewId func() string
}

var defaultGenerator = Generator{Now: time.Now, NewId: NewId}

// Generate snapshots dashboard data with the default clock and id source
func Generate(accounts []models.Account, products []models.CardProduct, ledger models.LedgerSnapshot) models.DossierSnapshot {
	return defaultGenerator.Generate(accounts, products, ledger)
}

// Generate copies its inputs so later dashboard changes never reach the snapshot
func (g Generator) Generate(accounts []models.Account, products []models.CardProduct, ledger models.LedgerSnapshot) models.DossierSnapshot {
	return models.DossierSnapshot{
		Id:             g.NewId(),
		CapturedAt:     g.Now().UTC(),
		Accounts:       cloneAccounts(accounts),
		CardProducts:   cloneProducts(products),
		Ledger:         ledger.Clone(),
		TotalLiquidity: TotalLiquidity(accounts),
	}
}

// TotalLiquidity is the plain sum of current balances, without the
// dashboard's depository/liability sign convention
func TotalLiquidity(accounts []models.Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance.Current)
	}
	return total
}

// NewId returns a report id of the form NEX-XXXXXXXX
func NewId() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "NEX-" + strings.ToUpper(hex[:8])
}

func cloneAccounts(accounts []models.Account) []models.Account {
	out := make([]models.Account, len(accounts))
	copy(out, accounts)
	return out
}

func cloneProducts(products []models.CardProduct) []models.CardProduct {
	out := make([]models.CardProduct, len(products))
	for i, p := range products {
		out[i] = p
		if p.Config != nil {
			out[i].Config = append(json.RawMessage(nil), p.Config...)
		}
	}
	return out
}
