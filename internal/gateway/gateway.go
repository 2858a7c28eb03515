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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"nexus-terminal-go/internal/activity"
	"nexus-terminal-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// EnvironmentPlaceholder is replaced in the aggregator URL template
const EnvironmentPlaceholder = "{environment}"

// relaySetting is shared by every credential-scoped copy of a Gateway
type relaySetting struct {
	mu      sync.RWMutex
	url     string
	enabled bool
}

// Gateway issues every outbound provider call, attaching per-provider
// authentication, applying the optional relay rewrite and logging traffic.
type Gateway struct {
	client *http.Client
	cfg    models.GatewayConfig
	relay  *relaySetting
	log    *activity.Log
	creds  models.Credentials
}

// Response is a completed call. A rejected response is still a Response;
// callers decide whether the rejection is fatal.
type Response struct {
	Provider Provider
	Endpoint string
	Status   int
	Body     json.RawMessage
	rejected *ProviderError
}

// Rejected reports whether the provider refused the call
func (r *Response) Rejected() bool { return r.rejected != nil }

// Err returns the provider rejection or nil
func (r *Response) Err() error {
	if r.rejected == nil {
		return nil
	}
	return r.rejected
}

// Decode unmarshals the body into v
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("unable to decode %s %s response: %w", r.Provider, r.Endpoint, err)
	}
	return nil
}

// New creates a Gateway with an HTTP/2 capable client
func New(cfg models.GatewayConfig, log *activity.Log) (*Gateway, error) {
	httpClient, err := createCustomHttpClient(cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}
	return NewWithClient(httpClient, cfg, log), nil
}

// NewWithClient creates a Gateway around an existing client
func NewWithClient(client *http.Client, cfg models.GatewayConfig, log *activity.Log) *Gateway {
	return &Gateway{
		client: client,
		cfg:    cfg,
		relay:  &relaySetting{url: cfg.RelayURL, enabled: cfg.RelayEnabled},
		log:    log,
	}
}

func createCustomHttpClient(timeout time.Duration) (*http.Client, error) {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

// WithCredentials returns a shallow copy bound to a credential set.
// Shares the HTTP client, relay setting and log.
func (g *Gateway) WithCredentials(creds models.Credentials) *Gateway {
	return &Gateway{client: g.client, cfg: g.cfg, relay: g.relay, log: g.log, creds: creds}
}

// WithLog returns a shallow copy that records its calls to log
func (g *Gateway) WithLog(log *activity.Log) *Gateway {
	return &Gateway{client: g.client, cfg: g.cfg, relay: g.relay, log: log, creds: g.creds}
}

// Log returns the activity log every call is recorded to
func (g *Gateway) Log() *activity.Log { return g.log }

// SetRelay replaces the relay configuration for all copies of this Gateway
func (g *Gateway) SetRelay(relayURL string, enabled bool) {
	g.relay.mu.Lock()
	defer g.relay.mu.Unlock()
	g.relay.url = relayURL
	g.relay.enabled = enabled
}

// Relay returns the relay base URL and whether it is applied
func (g *Gateway) Relay() (string, bool) {
	g.relay.mu.RLock()
	defer g.relay.mu.RUnlock()
	return g.relay.url, g.relay.enabled
}

// BaseURL resolves the provider root
func (g *Gateway) BaseURL(p Provider) string {
	switch p {
	case Plaid:
		return strings.ReplaceAll(g.cfg.PlaidURLTemplate, EnvironmentPlaceholder, string(g.creds.Plaid.Environment))
	case Marqeta:
		return g.cfg.MarqetaBaseURL
	case ModernTreasury:
		return g.cfg.ModernTreasuryBaseURL
	}
	return ""
}

// Target returns the URL a call is sent to, after the relay rewrite
func (g *Gateway) Target(p Provider, endpoint string) string {
	target := g.BaseURL(p) + endpoint
	relayURL, enabled := g.Relay()
	return RelayTarget(relayURL, enabled, target)
}

// RelayTarget wraps target behind the relay when one is configured
func RelayTarget(relayURL string, enabled bool, target string) string {
	if !enabled || relayURL == "" {
		return target
	}
	return relayURL + EncodeURIComponent(target)
}

// EncodeURIComponent percent-encodes s for embedding as a single query value
func EncodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Call sends a request to a provider. A transport failure is returned as a
// *TransportError; a provider rejection is returned as a Response whose Err
// is a *ProviderError.
func (g *Gateway) Call(ctx context.Context, p Provider, method, endpoint string, body any) (*Response, error) {
	strategy, ok := authStrategies[p]
	if !ok {
		return nil, fmt.Errorf("unknown provider %d", int(p))
	}
	auth := strategy(g.creds)

	payload, err := buildBody(body, auth.fields)
	if err != nil {
		return nil, fmt.Errorf("unable to encode %s request body: %w", p, err)
	}

	target := g.Target(p, endpoint)
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("unable to create %s request: %w", p, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, values := range auth.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	g.log.Append(fmt.Sprintf("%s %s [%s]", method, endpoint, p), models.LogRequest)
	zap.L().Debug("Calling provider",
		zap.String("provider", p.String()),
		zap.String("method", method),
		zap.String("endpoint", endpoint))

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, g.transportFailure(p, method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, g.transportFailure(p, method, endpoint, err)
	}

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		raw = []byte("null")
	}
	if !json.Valid(raw) {
		if success {
			return nil, g.transportFailure(p, method, endpoint, ErrMalformedBody)
		}
		raw = quoteText(raw)
	}

	result := &Response{
		Provider: p,
		Endpoint: endpoint,
		Status:   resp.StatusCode,
		Body:     json.RawMessage(raw),
	}

	if !success || (p == Plaid && carriesErrorMessage(result.Body)) {
		message := errorMessage(result.Body)
		result.rejected = &ProviderError{
			Provider: p,
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Message:  message,
			Payload:  result.Body,
		}
		g.log.Append(result.Body, models.LogError)
		zap.L().Warn("Provider rejected request",
			zap.String("provider", p.String()),
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("message", message))
		return result, nil
	}

	g.log.Append(result.Body, models.LogResponse)
	return result, nil
}

// quoteText encodes a non-JSON body as a JSON string, leaving HTML intact
func quoteText(raw []byte) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(string(raw))
	return bytes.TrimRight(buf.Bytes(), "\n")
}

func (g *Gateway) transportFailure(p Provider, method, endpoint string, err error) error {
	g.log.Append(err.Error(), models.LogError)
	zap.L().Error("Provider call failed",
		zap.String("provider", p.String()),
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Error(err))
	return &TransportError{Provider: p, Method: method, Endpoint: endpoint, Err: err}
}

// buildBody serializes body and merges credential fields into it.
// Returns nil when there is nothing to send.
func buildBody(body any, fields map[string]any) ([]byte, error) {
	if len(fields) == 0 {
		if body == nil {
			return nil, nil
		}
		return json.Marshal(body)
	}

	merged := map[string]any{}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &merged); err != nil {
			return nil, fmt.Errorf("body must be a JSON object to carry credentials: %w", err)
		}
		if merged == nil {
			merged = map[string]any{}
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}
