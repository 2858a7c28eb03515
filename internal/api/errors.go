package api

import (
	"errors"
	"net/http"

	"nexus-terminal-go/internal/dashboard"
	"nexus-terminal-go/internal/gateway"
	"nexus-terminal-go/internal/models"
	"nexus-terminal-go/internal/treasury"
	"nexus-terminal-go/internal/workflow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError maps domain errors onto HTTP statuses
func writeError(c *gin.Context, err error) {
	var validation *models.ValidationError
	var rejected *gateway.ProviderError
	var transport *gateway.TransportError
	var mint *dashboard.MintError

	body := gin.H{"error": err.Error()}
	if errors.As(err, &mint) {
		body["step"] = mint.Step
	}

	switch {
	case errors.As(err, &validation):
		body["missing"] = validation.Missing
		body["invalid"] = validation.Invalid
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, treasury.ErrUnknownResource):
		body["resources"] = treasury.Resources()
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrBusy),
		errors.Is(err, workflow.ErrNotReady),
		errors.Is(err, workflow.ErrSessionReset),
		errors.Is(err, workflow.ErrNoPendingLink),
		errors.Is(err, workflow.ErrLinkCancelled),
		errors.Is(err, dashboard.ErrMintInProgress),
		errors.Is(err, dashboard.ErrClosed):
		c.JSON(http.StatusConflict, body)
	case errors.As(err, &rejected):
		if rejected.Message != "" {
			body["error"] = rejected.Message
		}
		body["provider"] = rejected.Provider.String()
		body["status"] = rejected.Status
		body["payload"] = rejected.Payload
		c.JSON(http.StatusBadGateway, body)
	case errors.As(err, &transport):
		body["provider"] = transport.Provider.String()
		c.JSON(http.StatusBadGateway, body)
	default:
		zap.L().Error("Unhandled control API error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, body)
	}
}
