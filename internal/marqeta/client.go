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

package marqeta

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"nexus-terminal-go/internal/gateway"
	"nexus-terminal-go/internal/models"

	"github.com/google/uuid"
)

// Client wraps the issuer endpoints used by the terminal
type Client struct {
	gw         *gateway.Gateway
	product    models.CardProductProfile
	cardholder models.CardholderProfile
}

func NewClient(gw *gateway.Gateway, profile models.ProviderProfile) *Client {
	profile = profile.WithDefaults()
	return &Client{gw: gw, product: profile.CardProduct, cardholder: profile.Cardholder}
}

// ListCardProducts returns the card products visible to the program
func (c *Client) ListCardProducts(ctx context.Context) ([]models.CardProduct, error) {
	var response struct {
		Data []models.CardProduct `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/cardproducts", nil, &response); err != nil {
		return nil, err
	}
	if response.Data == nil {
		return []models.CardProduct{}, nil
	}
	return response.Data, nil
}

// CreateUser registers a cardholder under the given token
func (c *Client) CreateUser(ctx context.Context, userToken string) error {
	request := map[string]string{
		"token":      userToken,
		"first_name": c.cardholder.FirstName,
		"last_name":  c.cardholder.LastName,
	}
	var response struct {
		Token string `json:"token"`
	}
	return c.do(ctx, http.MethodPost, "/users", request, &response)
}

type expirationOffset struct {
	Unit  string `json:"unit"`
	Value int    `json:"value"`
}

type cardLifeCycle struct {
	ActivateUponIssue bool             `json:"activate_upon_issue"`
	ExpirationOffset  expirationOffset `json:"expiration_offset"`
}

type cardProductConfig struct {
	CardLifeCycle     cardLifeCycle `json:"card_life_cycle"`
	PaymentInstrument string        `json:"payment_instrument"`
}

type createCardProductRequest struct {
	Token  string            `json:"token"`
	Name   string            `json:"name"`
	Active bool              `json:"active"`
	Config cardProductConfig `json:"config"`
}

// CreateCardProduct creates a product with the default configuration and returns its token
func (c *Client) CreateCardProduct(ctx context.Context) (string, error) {
	request := createCardProductRequest{
		Token:  NewToken("cp_"),
		Name:   c.product.Name,
		Active: true,
		Config: cardProductConfig{
			CardLifeCycle: cardLifeCycle{
				ActivateUponIssue: c.product.ActivateUponIssue == nil || *c.product.ActivateUponIssue,
				ExpirationOffset:  expirationOffset{Unit: "YEARS", Value: c.product.ExpirationYears},
			},
			PaymentInstrument: c.product.PaymentInstrument,
		},
	}

	var response struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/cardproducts", request, &response); err != nil {
		return "", err
	}
	if response.Token == "" {
		return "", fmt.Errorf("card product response missing token")
	}
	return response.Token, nil
}

// CreateCard issues a card and asks for PAN and CVV disclosure
func (c *Client) CreateCard(ctx context.Context, userToken, productToken string) (*models.IssuedCard, error) {
	request := map[string]string{
		"user_token":         userToken,
		"card_product_token": productToken,
	}

	var response struct {
		Token            string `json:"token"`
		UserToken        string `json:"user_token"`
		CardProductToken string `json:"card_product_token"`
		LastFour         string `json:"last_four"`
		Pan              string `json:"pan"`
		Expiration       string `json:"expiration"`
		CvvNumber        string `json:"cvv_number"`
		State            string `json:"state"`
	}
	if err := c.do(ctx, http.MethodPost, "/cards?show_pan=true&show_cvv_number=true", request, &response); err != nil {
		return nil, err
	}
	if response.Token == "" {
		return nil, fmt.Errorf("card response missing token")
	}

	return &models.IssuedCard{
		Token:            response.Token,
		UserToken:        response.UserToken,
		CardProductToken: response.CardProductToken,
		LastFour:         response.LastFour,
		Pan:              response.Pan,
		Expiration:       response.Expiration,
		Cvv:              response.CvvNumber,
		State:            response.State,
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, request, response any) error {
	resp, err := c.gw.Call(ctx, gateway.Marqeta, method, endpoint, request)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	return resp.Decode(response)
}

// NewToken returns a short random issuer token with the given prefix
func NewToken(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// DisplayPan groups a PAN in fours or masks all but the last four digits
func DisplayPan(card models.IssuedCard) string {
	if card.Pan == "" {
		return "**** **** **** " + card.LastFour
	}
	var groups []string
	for i := 0; i < len(card.Pan); i += 4 {
		end := i + 4
		if end > len(card.Pan) {
			end = len(card.Pan)
		}
		groups = append(groups, card.Pan[i:end])
	}
	return strings.Join(groups, " ")
}
