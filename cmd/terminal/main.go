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

package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"nexus-terminal-go/internal/api"
	"nexus-terminal-go/internal/common"
	"nexus-terminal-go/internal/config"
	"nexus-terminal-go/internal/workflow"

	"go.uber.org/zap"
)

func main() {
	addr := flag.String("addr", "", "Listen address for the control API (overrides TERMINAL_LISTEN_ADDR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger, _ := zap.NewProduction()
		zap.ReplaceGlobals(logger)
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	zap.L().Info("Starting Nexus control terminal")

	controller, err := workflow.InitializeController(cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}

	listenAddr := cfg.Server.ListenAddr
	if *addr != "" {
		listenAddr = *addr
	}

	server := api.NewServer(listenAddr, controller)
	server.SetShutdownTimeout(cfg.Server.ShutdownTimeout)
	if err := server.Start(); err != nil {
		zap.L().Fatal("Failed to start control API", zap.String("addr", listenAddr), zap.Error(err))
	}

	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping control API...")

	if err := server.Stop(); err != nil {
		zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
		return
	}
	zap.L().Info("Control API stopped gracefully")
}
