package workflow

import (
	"fmt"

	"nexus-terminal-go/internal/activity"
	"nexus-terminal-go/internal/common"
	"nexus-terminal-go/internal/gateway"
	"nexus-terminal-go/internal/models"

	"go.uber.org/zap"
)

// InitializeController wires the activity log, gateway and provider profile
// into a fresh Controller
func InitializeController(cfg *models.Config) (*Controller, error) {
	profile, err := common.LoadProviderProfile(cfg.ProfileFile, cfg.ProfileFileSet)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider profile: %w", err)
	}

	log := activity.NewLog(cfg.Activity.Capacity)

	gw, err := gateway.New(cfg.Gateway, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	zap.L().Info("Gateway ready",
		zap.Bool("relay_enabled", cfg.Gateway.RelayEnabled),
		zap.String("relay_url", cfg.Gateway.RelayURL),
		zap.Int("log_capacity", log.Capacity()))

	return NewController(gw, profile), nil
}
