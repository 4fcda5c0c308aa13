package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/postgate/postgate/internal/config"
	"github.com/postgate/postgate/internal/connprovider"
	"github.com/postgate/postgate/internal/domain"
	"github.com/postgate/postgate/internal/executor"
	"github.com/postgate/postgate/internal/httpapi"
	"github.com/postgate/postgate/internal/logger"
	"github.com/postgate/postgate/internal/provisioner"
	"github.com/postgate/postgate/internal/storage/pg"
	"github.com/postgate/postgate/internal/touchqueue"
)

func main() {
	cfg := config.MustLoad()
	logger.Initialize(cfg.LogLevel, cfg.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := pg.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Error("failed to initialize storage", "error", err)
		panic(err)
	}
	defer storage.Cleanup()

	provider := connprovider.New(storage.DB(), cfg.SessionAcquireWait())
	defer provider.Cleanup()

	touchQueue := touchqueue.New(storage, 256)
	go touchQueue.Run(ctx)

	exec := executor.New(provider, touchQueue, cfg.QueryTimeout)

	if err := bootstrapAdmin(ctx, storage, cfg.DefaultRowCap); err != nil {
		logger.Log.Error("failed to bootstrap admin tenant", "error", err)
		panic(err)
	}

	handler := httpapi.NewHandler(storage, exec)
	router := httpapi.NewRouter(handler, storage)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.QueryTimeout + 5*time.Second,
	}

	go func() {
		logger.Log.Info("postgate starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("server failed", "error", err)
			panic(err)
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("server shutdown error", "error", err)
	} else {
		logger.Log.Info("server gracefully stopped")
	}
}

// bootstrapAdmin seeds a first administrative tenant and token on an empty
// database, so an operator always has a working credential after the very
// first boot rather than needing an out-of-band provisioning step. It is a
// no-op once any token exists.
func bootstrapAdmin(ctx context.Context, storage *pg.Storage, rowCap int) error {
	var count int
	if err := storage.DB().QueryRowContext(ctx, `SELECT count(*) FROM postgate_tokens`).Scan(&count); err != nil {
		return fmt.Errorf("check existing tokens: %w", err)
	}
	if count > 0 {
		return nil
	}

	prov := provisioner.New(storage)
	allPerms := domain.NewOperationSet(operationStrings(domain.AllOperations))
	tenant, secret, err := prov.CreateShared(ctx, "admin", rowCap, allPerms)
	if err != nil {
		return fmt.Errorf("create bootstrap admin tenant: %w", err)
	}

	logger.Log.Warn("bootstrapped admin tenant; store this token now, it is never shown again",
		"tenant_id", tenant.ID, "tenant_name", tenant.Name, "token", secret)
	return nil
}

func operationStrings(ops []domain.Operation) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = string(op)
	}
	return out
}
