package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/willjrcristo/premium-bridge/internal/config"
	httphandler "github.com/willjrcristo/premium-bridge/internal/handler/http"
	"github.com/willjrcristo/premium-bridge/internal/metrics"
	"github.com/willjrcristo/premium-bridge/internal/service"
)

// loginLimiterSize limita quantos IPs de cliente o limitador de login lembra.
const loginLimiterSize = 4096

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Sobe o servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("🚀 Iniciando a WooCommerce-Supabase Bridge...")

	svc, repo, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	router, err := newRouter(cfg, svc)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("✅ Servidor pronto para receber requisições", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("🛑 Encerrando o servidor")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(cfg *config.Config, svc *service.SubscriptionService) (http.Handler, error) {
	auth := httphandler.NewAuthenticator(cfg.Admin.Username, cfg.Admin.PasswordHash, cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	loginLimit, err := httphandler.NewClientRateLimit(cfg.Admin.LoginRPS, cfg.Admin.LoginBurst, loginLimiterSize)
	if err != nil {
		return nil, fmt.Errorf("login rate limiter: %w", err)
	}

	wooHandler := httphandler.NewWooCommerceWebhookHandler(svc, cfg.Webhook.WooCommerceSecret,
		cfg.Subscription.GrantDays, cfg.Server.MaxBodyBytes)
	adminHandler := httphandler.NewAdminHandler(svc)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	r.Use(metrics.Middleware)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	slog.Info("📖 Documentação Swagger disponível em /swagger/index.html")

	r.Get("/api/health", httphandler.Health)

	r.Post("/api/webhook", wooHandler.HandleWebhook)
	if cfg.Webhook.WooCommerceSecret == "" {
		slog.Warn("⚠️ Verificação de assinatura do webhook do WooCommerce desligada")
	}
	if cfg.Webhook.StripeSecret != "" {
		stripeHandler := httphandler.NewStripeWebhookHandler(svc, cfg.Webhook.StripeSecret, cfg.Server.MaxBodyBytes)
		r.Post("/api/webhook/stripe", stripeHandler.HandleStripeWebhook)
		slog.Info("💳 Webhook da Stripe habilitado")
	}

	bodyLimit := middleware.RequestSize(cfg.Server.MaxBodyBytes)
	r.With(loginLimit.Middleware, bodyLimit).Post("/api/admin/login", auth.HandleLogin)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin)
		r.Use(bodyLimit)
		r.Post("/api/check-expirations", adminHandler.CheckExpirations)
		r.Mount("/api/admin", adminHandler.Routes())
	})
	slog.Info("🛰️  Rotas registradas")

	return r, nil
}
