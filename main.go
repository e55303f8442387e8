package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/marssoaebs/stripe-sandbox/cmd"
	"github.com/marssoaebs/stripe-sandbox/pkg"
	"github.com/marssoaebs/stripe-sandbox/pkg/common"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := common.Load()
	if err != nil {
		log.Fatalf("Configuração inválida: %v", err)
	}

	logger := common.NewLogger()
	defer logger.Sync()

	// O cliente do Stripe é construído uma única vez a partir do segredo de
	// ambiente e só é lido depois disso.
	gateway := pkg.NewStripeGateway(cfg.StripeSecretKey)
	verifier := pkg.NewVerifier(cfg.WebhookSecret)
	dispatcher := pkg.NewDispatcher(logger)

	var wg sync.WaitGroup
	httpServer := cmd.NewHttpServer(cfg, logger, gateway, verifier, dispatcher)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.Run(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Servidor Http foi finalizado com erro: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("Sinal de desligamento recebido. Iniciando graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Erro no desligamento do Servidor Http: %v", err)
	} else {
		logger.Info("Servidor Http desligado com sucesso.")
	}

	wg.Wait()

	logger.Info("Processo de desligamento foi completo com sucesso!")
}
