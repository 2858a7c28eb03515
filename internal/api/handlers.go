package api

import (
	"errors"
	"net/http"
	"time"

	"nexus-terminal-go/internal/dashboard"
	"nexus-terminal-go/internal/dossier"
	"nexus-terminal-go/internal/marqeta"
	"nexus-terminal-go/internal/models"
	"nexus-terminal-go/internal/treasury"
	"nexus-terminal-go/internal/workflow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
		"state":  s.controller.State(),
	})
}

func (s *Server) sessionBody() gin.H {
	pendingToken, pending := s.widget.Pending()
	body := gin.H{
		"session":      s.controller.Snapshot(),
		"link_pending": pending,
	}
	if pending {
		body["pending_link_token"] = pendingToken
	}
	return body
}

func (s *Server) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.sessionBody())
}

func (s *Server) handleCredentials(c *gin.Context) {
	var req models.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if err := s.controller.SubmitCredentials(req); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.sessionBody())
}

func (s *Server) handleLinkToken(c *gin.Context) {
	linkToken, err := s.controller.RequestLinkToken(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"link_token": linkToken})
}

// handleLinkLaunch registers a pending bank link. The browser UI opens the
// widget with the returned token and posts the outcome to /api/link/callback.
func (s *Server) handleLinkLaunch(c *gin.Context) {
	done, err := s.controller.LaunchLink(s.ctx, s.widget)
	if err != nil {
		writeError(c, err)
		return
	}

	s.linkMu.Lock()
	s.linkDone = done
	s.linkMu.Unlock()

	linkToken, _ := s.widget.Pending()
	c.JSON(http.StatusAccepted, gin.H{"link_token": linkToken})
}

type linkCallbackRequest struct {
	PublicToken string `json:"public_token"`
	Error       string `json:"error"`
	Cancelled   bool   `json:"cancelled"`
}

func (s *Server) handleLinkCallback(c *gin.Context) {
	var req linkCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	result := workflow.LinkResult{PublicToken: req.PublicToken}
	switch {
	case req.Cancelled:
		result = workflow.LinkResult{Err: workflow.ErrLinkCancelled}
	case req.Error != "":
		result = workflow.LinkResult{Err: errors.New(req.Error)}
	}

	s.linkMu.Lock()
	done := s.linkDone
	s.linkDone = nil
	s.linkMu.Unlock()

	var err error
	if done != nil && s.widget.Deliver(result) == nil {
		err = <-done
	} else {
		err = s.controller.CompleteLink(result)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.sessionBody())
}

func (s *Server) handleExchange(c *gin.Context) {
	if err := s.controller.ExchangeToken(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.sessionBody())
}

func (s *Server) handleReset(c *gin.Context) {
	s.widget.Cancel()
	s.linkMu.Lock()
	s.linkDone = nil
	s.linkMu.Unlock()

	s.controller.Reset()
	c.JSON(http.StatusOK, s.sessionBody())
}

type relayRequest struct {
	URL     string `json:"url"`
	Enabled *bool  `json:"enabled"`
}

func (s *Server) handleRelay(c *gin.Context) {
	var req relayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	enabled := req.URL != ""
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	body := gin.H{}
	if err := s.controller.SetRelay(c.Request.Context(), req.URL, enabled); err != nil {
		zap.L().Warn("Refresh after relay change failed", zap.Error(err))
		body["refresh_error"] = err.Error()
	}
	body["relay_url"], body["relay_enabled"] = req.URL, enabled
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleLogs(c *gin.Context) {
	log := s.controller.Log()
	c.JSON(http.StatusOK, gin.H{
		"entries":  log.Entries(),
		"capacity": log.Capacity(),
	})
}

func (s *Server) handleFlushLogs(c *gin.Context) {
	s.controller.Log().Flush()
	c.Status(http.StatusNoContent)
}

func dashboardBody(view models.DashboardView) gin.H {
	body := gin.H{
		"dashboard": view,
		"resources": treasury.Resources(),
	}
	if view.IssuedCard != nil {
		body["issued_card_display"] = marqeta.DisplayPan(*view.IssuedCard)
	}
	return body
}

func (s *Server) handleDashboard(c *gin.Context) {
	agg, err := s.controller.Dashboard()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboardBody(agg.View()))
}

func (s *Server) handleRefresh(c *gin.Context) {
	agg, err := s.controller.Dashboard()
	if err != nil {
		writeError(c, err)
		return
	}
	if err := agg.Refresh(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboardBody(agg.View()))
}

// handleSelectResource reports provider failures through the ledger payload,
// so only an unknown or closed resource is an error here
func (s *Server) handleSelectResource(c *gin.Context) {
	agg, err := s.controller.Dashboard()
	if err != nil {
		writeError(c, err)
		return
	}

	err = agg.SelectResource(c.Request.Context(), c.Param("resource"))
	if errors.Is(err, treasury.ErrUnknownResource) || errors.Is(err, dashboard.ErrClosed) {
		writeError(c, err)
		return
	}
	if err != nil {
		zap.L().Debug("Ledger fetch failed", zap.String("resource", c.Param("resource")), zap.Error(err))
	}
	c.JSON(http.StatusOK, dashboardBody(agg.View()))
}

func (s *Server) handleMintCard(c *gin.Context) {
	agg, err := s.controller.Dashboard()
	if err != nil {
		writeError(c, err)
		return
	}
	card, err := agg.MintCard(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"card":    card,
		"display": marqeta.DisplayPan(card),
	})
}

func (s *Server) handleDismissCard(c *gin.Context) {
	agg, err := s.controller.Dashboard()
	if err != nil {
		writeError(c, err)
		return
	}
	agg.DismissCard()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleOpenDossier(c *gin.Context) {
	agg, err := s.controller.Dashboard()
	if err != nil {
		writeError(c, err)
		return
	}
	snap, err := agg.OpenDossier()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (s *Server) handleGetDossier(c *gin.Context) {
	agg, err := s.controller.Dashboard()
	if err != nil {
		writeError(c, err)
		return
	}
	snap, ok := agg.CurrentDossier()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no dossier open"})
		return
	}
	if c.Query("format") == "text" {
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(dossier.RenderString(snap)))
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleCloseDossier(c *gin.Context) {
	agg, err := s.controller.Dashboard()
	if err != nil {
		writeError(c, err)
		return
	}
	agg.CloseDossier()
	c.Status(http.StatusNoContent)
}
