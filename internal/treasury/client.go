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

package treasury

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"nexus-terminal-go/internal/gateway"
)

// Ledger sub-resources the explorer can browse
const (
	Ledgers            = "ledgers"
	LedgerAccounts     = "ledger_accounts"
	LedgerTransactions = "ledger_transactions"
	Counterparties     = "counterparties"
	PaymentOrders      = "payment_orders"
	ExpectedPayments   = "expected_payments"
)

// DefaultResource is fetched when the dashboard opens
const DefaultResource = Ledgers

// ErrUnknownResource is returned for names outside the explorer's resource set
var ErrUnknownResource = errors.New("unknown ledger resource")

var resources = []string{Ledgers, LedgerAccounts, LedgerTransactions, Counterparties, PaymentOrders, ExpectedPayments}

// Resources lists the browsable sub-resources in display order
func Resources() []string {
	return append([]string(nil), resources...)
}

// ValidResource reports whether name is a browsable sub-resource
func ValidResource(name string) bool {
	for _, r := range resources {
		if r == name {
			return true
		}
	}
	return false
}

// Client wraps the ledger provider endpoints
type Client struct {
	gw *gateway.Gateway
}

func NewClient(gw *gateway.Gateway) *Client {
	return &Client{gw: gw}
}

// Fetch lists a sub-resource. The payload is returned even when the provider
// rejects the call; the rejection is reported through the error.
func (c *Client) Fetch(ctx context.Context, resource string) (json.RawMessage, error) {
	if !ValidResource(resource) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}

	resp, err := c.gw.Call(ctx, gateway.ModernTreasury, http.MethodGet, "/"+resource, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, resp.Err()
}
