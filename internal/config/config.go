// Package config carrega a configuração da bridge a partir dos padrões, de um arquivo
// opcional e das variáveis de ambiente BRIDGE_*.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

// EnvPrefix prefixa toda variável de ambiente, ex: BRIDGE_STORAGE_DSN.
const EnvPrefix = "BRIDGE"

// Config é a configuração completa, passada explicitamente para cada componente.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Directory    DirectoryConfig    `mapstructure:"directory"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Webhook      WebhookConfig      `mapstructure:"webhook"`
	Admin        AdminConfig        `mapstructure:"admin"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

// StorageConfig escolhe o backend do ledger.
type StorageConfig struct {
	Driver  string `mapstructure:"driver"` // "sqlite" (padrão), "postgres" ou "memory"
	DSN     string `mapstructure:"dsn"`    // caminho do arquivo no sqlite, URL no postgres
	Migrate bool   `mapstructure:"migrate"`
}

// DirectoryConfig escolhe onde os emails de cobrança viram user ids.
type DirectoryConfig struct {
	Driver      string        `mapstructure:"driver"` // "supabase" (padrão) ou "static"
	SupabaseURL string        `mapstructure:"supabase_url"`
	ServiceKey  string        `mapstructure:"service_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	CacheSize   int           `mapstructure:"cache_size"` // 0 desliga o cache
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	// Pares "email=user_id". Não é mapa: o viper quebra chaves nos pontos, e emails têm pontos.
	Static []string `mapstructure:"static"`
}

// SubscriptionConfig guarda as regras de negócio.
type SubscriptionConfig struct {
	PremiumProductIDs  []string `mapstructure:"premium_product_ids"`
	QualifyingStatuses []string `mapstructure:"qualifying_statuses"`
	GrantDays          int      `mapstructure:"grant_days"`
	MaxExtendDays      int      `mapstructure:"max_extend_days"`
	CreateMissing      bool     `mapstructure:"create_missing"`
	BulkConcurrency    int      `mapstructure:"bulk_concurrency"`
	ExpiringSoonDays   int      `mapstructure:"expiring_soon_days"`
}

type WebhookConfig struct {
	WooCommerceSecret string `mapstructure:"woocommerce_secret"` // vazio pula a verificação de assinatura
	StripeSecret      string `mapstructure:"stripe_secret"`      // vazio desliga a rota da Stripe
}

type AdminConfig struct {
	Username     string        `mapstructure:"username"`
	PasswordHash string        `mapstructure:"password_hash"` // bcrypt
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	LoginRPS     float64       `mapstructure:"login_rps"`
	LoginBurst   int           `mapstructure:"login_burst"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" ou "text"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.max_body_bytes", 65536)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "./sqlite-database.db")
	v.SetDefault("storage.migrate", true)

	v.SetDefault("directory.driver", "supabase")
	v.SetDefault("directory.supabase_url", "")
	v.SetDefault("directory.service_key", "")
	v.SetDefault("directory.timeout", 10*time.Second)
	v.SetDefault("directory.cache_size", 1024)
	v.SetDefault("directory.cache_ttl", 5*time.Minute)
	v.SetDefault("directory.static", []string{})

	v.SetDefault("subscription.premium_product_ids", []string{"2860"})
	v.SetDefault("subscription.qualifying_statuses", []string{"completed", "processing"})
	v.SetDefault("subscription.grant_days", 30)
	v.SetDefault("subscription.max_extend_days", 365)
	v.SetDefault("subscription.create_missing", false)
	v.SetDefault("subscription.bulk_concurrency", 4)
	v.SetDefault("subscription.expiring_soon_days", 7)

	v.SetDefault("webhook.woocommerce_secret", "")
	v.SetDefault("webhook.stripe_secret", "")

	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.token_ttl", 12*time.Hour)
	v.SetDefault("admin.login_rps", 0.2)
	v.SetDefault("admin.login_burst", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load lê a configuração. path pode ser vazio; aí só valem os padrões e as
// variáveis de ambiente.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Subscription.PremiumProductIDs = cleanList(cfg.Subscription.PremiumProductIDs)
	cfg.Subscription.QualifyingStatuses = cleanList(cfg.Subscription.QualifyingStatuses)
	cfg.Directory.Static = cleanList(cfg.Directory.Static)
	return &cfg, nil
}

// Validate recusa configurações com as quais o serviço não roda. Storage é checado
// em todo comando; as seções só de HTTP, apenas no serve.
func (c *Config) Validate(serving bool) error {
	var result *multierror.Error

	switch c.Storage.Driver {
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			result = multierror.Append(result, errors.New("storage.dsn is required"))
		}
	case "memory":
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported storage driver: %q", c.Storage.Driver))
	}

	if len(c.Subscription.PremiumProductIDs) == 0 {
		result = multierror.Append(result, errors.New("subscription.premium_product_ids must not be empty"))
	}
	if len(c.Subscription.QualifyingStatuses) == 0 {
		result = multierror.Append(result, errors.New("subscription.qualifying_statuses must not be empty"))
	}
	if c.Subscription.GrantDays <= 0 {
		result = multierror.Append(result, errors.New("subscription.grant_days must be positive"))
	}
	if c.Subscription.MaxExtendDays <= 0 {
		result = multierror.Append(result, errors.New("subscription.max_extend_days must be positive"))
	}

	if serving {
		switch c.Directory.Driver {
		case "supabase":
			if c.Directory.SupabaseURL == "" || c.Directory.ServiceKey == "" {
				result = multierror.Append(result, errors.New("directory.supabase_url and directory.service_key are required"))
			}
		case "static":
		default:
			result = multierror.Append(result, fmt.Errorf("unsupported directory driver: %q", c.Directory.Driver))
		}
		if c.Admin.JWTSecret == "" {
			result = multierror.Append(result, errors.New("admin.jwt_secret is required"))
		}
		if c.Admin.PasswordHash == "" {
			result = multierror.Append(result, errors.New("admin.password_hash is required (see `bridge hash-password`)"))
		}
	}

	return result.ErrorOrNil()
}

// cleanList apara as entradas e descarta as vazias; valores de env chegam como "a, b".
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
