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

package plaid

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"nexus-terminal-go/internal/gateway"
	"nexus-terminal-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrMissingAccounts is returned when a successful accounts response has no account list
var ErrMissingAccounts = errors.New("accounts response carries no account list")

// Client wraps the aggregator endpoints used by the terminal
type Client struct {
	gw      *gateway.Gateway
	link    models.LinkProfile
	sandbox models.SandboxProfile
}

func NewClient(gw *gateway.Gateway, profile models.ProviderProfile) *Client {
	profile = profile.WithDefaults()
	return &Client{gw: gw, link: profile.Link, sandbox: profile.Sandbox}
}

type linkTokenUser struct {
	ClientUserId string `json:"client_user_id"`
}

type linkTokenRequest struct {
	User         linkTokenUser `json:"user"`
	ClientName   string        `json:"client_name"`
	Products     []string      `json:"products"`
	CountryCodes []string      `json:"country_codes"`
	Language     string        `json:"language"`
}

// CreateLinkToken requests a link token for a freshly generated user id
func (c *Client) CreateLinkToken(ctx context.Context) (string, error) {
	request := linkTokenRequest{
		User:         linkTokenUser{ClientUserId: NewClientUserId()},
		ClientName:   c.link.ClientName,
		Products:     c.link.Products,
		CountryCodes: c.link.CountryCodes,
		Language:     c.link.Language,
	}

	var response struct {
		LinkToken string `json:"link_token"`
	}
	if err := c.post(ctx, "/link/token/create", request, &response); err != nil {
		return "", err
	}
	if response.LinkToken == "" {
		return "", fmt.Errorf("link token response missing link_token")
	}

	zap.L().Info("Link token issued", zap.String("client_user_id", request.User.ClientUserId))
	return response.LinkToken, nil
}

// ExchangePublicToken trades a public token for an access token
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (string, error) {
	if publicToken == "" {
		return "", fmt.Errorf("public token is required")
	}

	var response struct {
		AccessToken string `json:"access_token"`
		ItemId      string `json:"item_id"`
	}
	request := map[string]string{"public_token": publicToken}
	if err := c.post(ctx, "/item/public_token/exchange", request, &response); err != nil {
		return "", err
	}
	if response.AccessToken == "" {
		return "", fmt.Errorf("exchange response missing access_token")
	}

	zap.L().Info("Public token exchanged", zap.String("item_id", response.ItemId))
	return response.AccessToken, nil
}

// GetAccounts fetches and normalizes the linked accounts
func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]models.Account, error) {
	var response struct {
		Accounts *[]RawAccount `json:"accounts"`
	}
	request := map[string]string{"access_token": accessToken}
	if err := c.post(ctx, "/accounts/get", request, &response); err != nil {
		return nil, err
	}
	if response.Accounts == nil {
		return nil, ErrMissingAccounts
	}

	accounts := make([]models.Account, len(*response.Accounts))
	for i, raw := range *response.Accounts {
		accounts[i] = NormalizeAccount(raw)
	}
	return accounts, nil
}

// CreateSandboxPublicToken mints a public token without the hosted link UI.
// Only the sandbox environment serves this endpoint.
func (c *Client) CreateSandboxPublicToken(ctx context.Context) (string, error) {
	request := map[string]any{
		"institution_id":   c.sandbox.InstitutionId,
		"initial_products": c.sandbox.InitialProducts,
	}

	var response struct {
		PublicToken string `json:"public_token"`
	}
	if err := c.post(ctx, "/sandbox/public_token/create", request, &response); err != nil {
		return "", err
	}
	if response.PublicToken == "" {
		return "", fmt.Errorf("sandbox response missing public_token")
	}
	return response.PublicToken, nil
}

func (c *Client) post(ctx context.Context, endpoint string, request, response any) error {
	resp, err := c.gw.Call(ctx, gateway.Plaid, http.MethodPost, endpoint, request)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	return resp.Decode(response)
}

// NewClientUserId returns a unique end-user id for a link session
func NewClientUserId() string {
	return "nexus_" + uuid.NewString()
}
