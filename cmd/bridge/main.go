package main

//go:generate swag init --dir ../.. --generalInfo cmd/bridge/main.go --output ../../docs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "github.com/willjrcristo/premium-bridge/docs" // Importa a pasta docs gerada
	"github.com/willjrcristo/premium-bridge/internal/config"
	"github.com/willjrcristo/premium-bridge/internal/directory"
	"github.com/willjrcristo/premium-bridge/internal/repository"
	"github.com/willjrcristo/premium-bridge/internal/service"
)

// @title           WooCommerce-Supabase Bridge
// @version         1.0
// @description     Libera o acesso premium para compradores do WooCommerce e da Stripe e permite que admins gerenciem o ledger de assinaturas.
//
// @host      localhost:8080
// @BasePath  /
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("💥 Erro ao executar o comando", "error", err)
		os.Exit(1)
	}
}

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bridge",
		Short: "Bridge de premium WooCommerce-Supabase",
		Long:  "Recebe webhooks de pedidos, concede e expira o acesso premium no ledger de assinaturas e serve a API de admin.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Sem .env é normal em produção.
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load .env: %w", err)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "caminho do arquivo de configuração (yaml, json ou toml)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSweepCmd())
	root.AddCommand(newExtendCmd())
	root.AddCommand(newRevokeCmd())
	root.AddCommand(newHashPasswordCmd())

	return root
}

// loadConfig lê a configuração, instala o logger e valida.
func loadConfig(serving bool) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	setupLogger(cfg.Logging)
	if err := cfg.Validate(serving); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogger(cfg config.LoggingConfig) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// buildService faz a injeção de dependências: DB -> Repository -> Service.
// Quem chama fecha o repositório.
func buildService(ctx context.Context, cfg *config.Config) (*service.SubscriptionService, repository.Repository, error) {
	repo, err := repository.New(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	slog.Info("💾 Armazenamento do ledger pronto", "driver", cfg.Storage.Driver)

	dir, err := directory.New(cfg.Directory)
	if err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("init directory: %w", err)
	}

	svc := service.NewSubscriptionService(repo, dir, service.RulesFromConfig(cfg.Subscription))
	return svc, repo, nil
}
