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

package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"nexus-terminal-go/internal/workflow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultShutdownTimeout = 5 * time.Second

// Server exposes the operator session over a JSON HTTP API
type Server struct {
	addr            string
	controller      *workflow.Controller
	widget          *workflow.CallbackWidget
	server          *http.Server
	ctx             context.Context
	cancel          context.CancelFunc
	startTime       time.Time
	shutdownTimeout time.Duration

	linkMu   sync.Mutex
	linkDone <-chan error
}

// NewServer creates a new control API server
func NewServer(addr string, controller *workflow.Controller) *Server {
	if addr == "" {
		addr = "127.0.0.1:8765"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:            addr,
		controller:      controller,
		widget:          workflow.NewCallbackWidget(),
		ctx:             ctx,
		cancel:          cancel,
		shutdownTimeout: defaultShutdownTimeout,
	}
}

// SetShutdownTimeout bounds how long Stop waits for in-flight requests
func (s *Server) SetShutdownTimeout(d time.Duration) {
	if d > 0 {
		s.shutdownTimeout = d
	}
}

// Addr returns the configured listen address
func (s *Server) Addr() string { return s.addr }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)

	r.GET("/api/session", s.handleSession)
	r.POST("/api/credentials", s.handleCredentials)
	r.POST("/api/link-token", s.handleLinkToken)
	r.POST("/api/link/launch", s.handleLinkLaunch)
	r.POST("/api/link/callback", s.handleLinkCallback)
	r.POST("/api/exchange", s.handleExchange)
	r.POST("/api/session/reset", s.handleReset)
	r.PUT("/api/relay", s.handleRelay)

	r.GET("/api/logs", s.handleLogs)
	r.DELETE("/api/logs", s.handleFlushLogs)

	r.GET("/api/dashboard", s.handleDashboard)
	r.POST("/api/dashboard/refresh", s.handleRefresh)
	r.POST("/api/ledger/:resource", s.handleSelectResource)
	r.POST("/api/cards", s.handleMintCard)
	r.DELETE("/api/cards/issued", s.handleDismissCard)

	r.POST("/api/dossier", s.handleOpenDossier)
	r.GET("/api/dossier", s.handleGetDossier)
	r.DELETE("/api/dossier", s.handleCloseDossier)

	return r
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()
	zap.L().Info("Control API listening", zap.String("addr", listener.Addr().String()))

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			zap.L().Error("Control API stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.cancel()
	s.widget.Cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
