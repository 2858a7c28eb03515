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
	"fmt"
	"strings"
)

// PlaidEnvironment selects the aggregator host
type PlaidEnvironment string

const (
	PlaidSandbox     PlaidEnvironment = "sandbox"
	PlaidDevelopment PlaidEnvironment = "development"
	PlaidProduction  PlaidEnvironment = "production"
)

// Valid reports whether the environment is one the aggregator serves
func (e PlaidEnvironment) Valid() bool {
	switch e {
	case PlaidSandbox, PlaidDevelopment, PlaidProduction:
		return true
	}
	return false
}

// PlaidCredentials authenticate against the account aggregator
type PlaidCredentials struct {
	ClientId    string           `json:"client_id"`
	Secret      string           `json:"secret"`
	Environment PlaidEnvironment `json:"environment"`
}

// MarqetaCredentials authenticate against the card issuer
type MarqetaCredentials struct {
	ApplicationToken string `json:"application_token"`
	AdminAccessToken string `json:"admin_access_token"`
}

// ModernTreasuryCredentials authenticate against the ledger provider
type ModernTreasuryCredentials struct {
	OrganizationId string `json:"organization_id"`
	ApiKey         string `json:"api_key"`
}

// Credentials is the full stack bundle captured at submission time.
// It is held read-only for the rest of the session.
type Credentials struct {
	Plaid          PlaidCredentials          `json:"plaid"`
	Marqeta        MarqetaCredentials        `json:"marqeta"`
	ModernTreasury ModernTreasuryCredentials `json:"modern_treasury"`
}

// ValidationError lists the credential fields that blocked submission
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return fmt.Sprintf("incomplete credentials: %s", strings.Join(parts, "; "))
}

// Validate checks that every field of all three bundles is present
func (c Credentials) Validate() error {
	verr := &ValidationError{}

	required := []struct {
		name  string
		value string
	}{
		{"plaid.client_id", c.Plaid.ClientId},
		{"plaid.secret", c.Plaid.Secret},
		{"plaid.environment", string(c.Plaid.Environment)},
		{"marqeta.application_token", c.Marqeta.ApplicationToken},
		{"marqeta.admin_access_token", c.Marqeta.AdminAccessToken},
		{"modern_treasury.organization_id", c.ModernTreasury.OrganizationId},
		{"modern_treasury.api_key", c.ModernTreasury.ApiKey},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			verr.Missing = append(verr.Missing, field.name)
		}
	}

	if c.Plaid.Environment != "" && !c.Plaid.Environment.Valid() {
		verr.Invalid = append(verr.Invalid, "plaid.environment")
	}

	if len(verr.Missing) > 0 || len(verr.Invalid) > 0 {
		return verr
	}
	return nil
}
