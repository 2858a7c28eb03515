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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"nexus-terminal-go/internal/models"
)

const (
	DefaultRelayURL              = "https://corsproxy.io/?url="
	DefaultPlaidURLTemplate      = "https://{environment}.plaid.com"
	DefaultMarqetaBaseURL        = "https://sandbox-api.marqeta.com/v3"
	DefaultModernTreasuryBaseURL = "https://app.moderntreasury.com/api"
	DefaultLogCapacity           = 50
)

func Load() (*models.Config, error) {
	shutdownTimeout, err := getEnvDuration("TERMINAL_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	requestTimeout, err := getEnvDuration("GATEWAY_REQUEST_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	if requestTimeout < 0 {
		return nil, fmt.Errorf("invalid duration for GATEWAY_REQUEST_TIMEOUT: %s is negative", requestTimeout)
	}

	capacity := getEnvInt("ACTIVITY_LOG_CAPACITY", DefaultLogCapacity)
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}

	_, profileSet := os.LookupEnv("PROVIDER_PROFILE_FILE")

	return &models.Config{
		Server: models.ServerConfig{
			ListenAddr:      getEnvString("TERMINAL_LISTEN_ADDR", "127.0.0.1:8765"),
			ShutdownTimeout: shutdownTimeout,
		},
		Gateway: models.GatewayConfig{
			RelayURL:              getEnvString("RELAY_URL", DefaultRelayURL),
			RelayEnabled:          getEnvBool("RELAY_ENABLED", true),
			RequestTimeout:        requestTimeout,
			PlaidURLTemplate:      getEnvString("PLAID_URL_TEMPLATE", DefaultPlaidURLTemplate),
			MarqetaBaseURL:        getEnvString("MARQETA_BASE_URL", DefaultMarqetaBaseURL),
			ModernTreasuryBaseURL: getEnvString("MODERN_TREASURY_BASE_URL", DefaultModernTreasuryBaseURL),
		},
		Activity: models.ActivityConfig{
			Capacity: capacity,
		},
		ProfileFile:    getEnvString("PROVIDER_PROFILE_FILE", "providers.yaml"),
		ProfileFileSet: profileSet,
	}, nil
}

// LoadCredentials reads the three provider bundles from the environment.
// Validation is left to the caller so the workflow reports missing fields uniformly.
func LoadCredentials() models.Credentials {
	return models.Credentials{
		Plaid: models.PlaidCredentials{
			ClientId:    os.Getenv("PLAID_CLIENT_ID"),
			Secret:      os.Getenv("PLAID_SECRET"),
			Environment: models.PlaidEnvironment(getEnvString("PLAID_ENV", string(models.PlaidSandbox))),
		},
		Marqeta: models.MarqetaCredentials{
			ApplicationToken: os.Getenv("MARQETA_APPLICATION_TOKEN"),
			AdminAccessToken: os.Getenv("MARQETA_ADMIN_ACCESS_TOKEN"),
		},
		ModernTreasury: models.ModernTreasuryCredentials{
			OrganizationId: os.Getenv("MT_ORGANIZATION_ID"),
			ApiKey:         os.Getenv("MT_API_KEY"),
		},
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
