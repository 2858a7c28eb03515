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
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"nexus-terminal-go/internal/common"
	"nexus-terminal-go/internal/config"
	"nexus-terminal-go/internal/dashboard"
	"nexus-terminal-go/internal/dossier"
	"nexus-terminal-go/internal/marqeta"
	"nexus-terminal-go/internal/models"
	"nexus-terminal-go/internal/workflow"

	"go.uber.org/zap"
)

func printAccounts(view models.DashboardView) {
	common.FprintSection(os.Stdout, fmt.Sprintf("Accounts (%d)", len(view.Accounts)), common.DefaultWidth-2)
	for i, acct := range view.Accounts {
		isLast := i == len(view.Accounts)-1
		fmt.Printf("%s%-30s ****%s %-12s %15s %s\n",
			common.BoxPrefix(isLast),
			common.Truncate(acct.Name, 30),
			acct.Mask,
			acct.Type,
			acct.Balance.Current.StringFixed(2),
			acct.Balance.Currency)
	}
	fmt.Printf("   Net balance: %s\n", view.NetBalance.StringFixed(2))
}

func printProducts(view models.DashboardView) {
	common.FprintSection(os.Stdout, fmt.Sprintf("Card products (%d)", len(view.CardProducts)), common.DefaultWidth-2)
	if len(view.CardProducts) == 0 {
		fmt.Printf("%snone\n", common.BoxPrefix(true))
	}
	for i, prod := range view.CardProducts {
		fmt.Printf("%s%-40s %s\n", common.BoxPrefix(i == len(view.CardProducts)-1), common.Truncate(prod.Name, 40), prod.Token)
	}
}

func printCard(card models.IssuedCard) {
	fmt.Println("\n┌─ Issued card")
	fmt.Printf("│  PAN:        %s\n", marqeta.DisplayPan(card))
	fmt.Printf("│  Expiration: %s\n", card.Expiration)
	fmt.Printf("│  CVV:        %s\n", card.Cvv)
	fmt.Printf("└  State:      %s\n", card.State)
}

func runHandshake(ctx context.Context, controller *workflow.Controller) (*dashboard.Aggregator, error) {
	creds := config.LoadCredentials()
	if err := controller.SubmitCredentials(creds); err != nil {
		return nil, err
	}

	if _, err := controller.RequestLinkToken(ctx); err != nil {
		return nil, fmt.Errorf("link token request failed: %w", err)
	}
	zap.L().Info("Link token obtained")

	widget, err := controller.SandboxWidget()
	if err != nil {
		return nil, err
	}
	done, err := controller.LaunchLink(ctx, widget)
	if err != nil {
		return nil, err
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("bank link failed: %w", err)
	}

	if err := controller.ExchangeToken(ctx); err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	zap.L().Info("Access token obtained", zap.String("state", string(controller.State())))

	return controller.Dashboard()
}

func main() {
	resource := flag.String("resource", "", "Ledger sub-resource to select after the dashboard loads")
	mint := flag.Bool("mint", false, "Issue a virtual card once the dashboard loads")
	printDossier := flag.Bool("dossier", true, "Print the dossier report")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall deadline for the handshake")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger, _ := zap.NewProduction()
		zap.ReplaceGlobals(logger)
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	controller, err := workflow.InitializeController(cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}

	agg, err := runHandshake(ctx, controller)
	if err != nil {
		var validation *models.ValidationError
		if errors.As(err, &validation) {
			fmt.Fprintf(os.Stderr, "Credentials incomplete. Missing: %v Invalid: %v\n", validation.Missing, validation.Invalid)
			os.Exit(1)
		}
		zap.L().Fatal("Handshake failed", zap.Error(err))
	}

	if *resource != "" {
		if err := agg.SelectResource(ctx, *resource); err != nil {
			zap.L().Warn("Ledger selection returned an error", zap.String("resource", *resource), zap.Error(err))
		}
	}

	if *mint {
		card, err := agg.MintCard(ctx)
		if err != nil {
			zap.L().Error("Card issuance failed", zap.Error(err))
		} else {
			printCard(card)
		}
	}

	view := agg.View()
	common.FprintHeader(os.Stdout, "NEXUS TERMINAL DASHBOARD", common.DefaultWidth)
	printAccounts(view)
	printProducts(view)

	if *printDossier {
		snap, err := agg.OpenDossier()
		if err != nil {
			zap.L().Fatal("Failed to generate dossier", zap.Error(err))
		}
		if err := dossier.Render(os.Stdout, snap); err != nil {
			zap.L().Fatal("Failed to print dossier", zap.Error(err))
		}
	}
}
