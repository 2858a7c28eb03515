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

package gateway

import (
	"encoding/base64"
	"net/http"

	"nexus-terminal-go/internal/models"
)

// Provider identifies one of the three upstream APIs
type Provider int

const (
	Plaid Provider = iota
	Marqeta
	ModernTreasury
)

func (p Provider) String() string {
	switch p {
	case Plaid:
		return "PLAID"
	case Marqeta:
		return "MARQETA"
	case ModernTreasury:
		return "MODERN_TREASURY"
	}
	return "UNKNOWN"
}

// authParts is what a provider needs attached to each request
type authParts struct {
	header http.Header
	fields map[string]any // merged into the JSON body
}

type authStrategy func(creds models.Credentials) authParts

// authStrategies selects the authentication scheme by provider identity.
// The aggregator takes its keys in the body; the others use HTTP Basic.
var authStrategies = map[Provider]authStrategy{
	Plaid: func(creds models.Credentials) authParts {
		return authParts{fields: map[string]any{
			"client_id": creds.Plaid.ClientId,
			"secret":    creds.Plaid.Secret,
		}}
	},
	Marqeta: func(creds models.Credentials) authParts {
		return basicAuth(creds.Marqeta.ApplicationToken, creds.Marqeta.AdminAccessToken)
	},
	ModernTreasury: func(creds models.Credentials) authParts {
		return basicAuth(creds.ModernTreasury.OrganizationId, creds.ModernTreasury.ApiKey)
	},
}

func basicAuth(user, password string) authParts {
	header := http.Header{}
	header.Set("Authorization", BasicAuthorization(user, password))
	return authParts{header: header}
}

// BasicAuthorization returns the Authorization header value for a credential pair
func BasicAuthorization(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}
