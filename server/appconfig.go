package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/legit-games/oauth2-in-action/manage"
	"github.com/legit-games/oauth2-in-action/models"
	"github.com/legit-games/oauth2-in-action/store"
)

// EnvPrefix is the prefix of configuration environment variables. Nested
// keys are separated by "__", e.g. OAUTH_AUTHSERVER__ISSUER.
const EnvPrefix = "OAUTH_"

// AppConfig defines application configuration loaded from files and environment.
type AppConfig struct {
	Env        string           `koanf:"env"`
	Log        LogConfig        `koanf:"log"`
	AuthServer AuthServerConfig `koanf:"authserver"`
	Resource   ResourceConfig   `koanf:"resource"`
	Client     ClientConfig     `koanf:"client"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// AuthServerConfig configures the authorization server process.
type AuthServerConfig struct {
	Addr            string                `koanf:"addr"`
	Issuer          string                `koanf:"issuer"`
	AccessTokenExp  time.Duration         `koanf:"access_token_exp"`
	RefreshTokenExp time.Duration         `koanf:"refresh_token_exp"`
	RequestTTL      time.Duration         `koanf:"request_ttl"`
	CodeTTL         time.Duration         `koanf:"code_ttl"`
	MaxPending      int                   `koanf:"max_pending"`
	JanitorInterval time.Duration         `koanf:"janitor_interval"`
	RefreshRotation RefreshRotationConfig `koanf:"refresh_rotation"`
	Storage         StorageConfig         `koanf:"storage"`
	Clients         []RegisteredClient    `koanf:"clients"`
	Resources       []RegisteredResource  `koanf:"resources"`
	Users           []RegisteredUser      `koanf:"users"`
}

// RefreshRotationConfig maps to manage.RefreshingConfig.
type RefreshRotationConfig struct {
	// Whether to issue a new refresh token during refresh
	GenerateNew bool `koanf:"generate_new"`
	// Whether to remove old access token on refresh
	RemoveOldAccess bool `koanf:"remove_old_access"`
}

type StorageConfig struct {
	Backend      string `koanf:"backend"`
	ValkeyAddr   string `koanf:"valkey_addr"`
	ValkeyPrefix string `koanf:"valkey_prefix"`
	DSN          string `koanf:"dsn"`
}

type RegisteredClient struct {
	ID           string   `koanf:"id"`
	Secret       string   `koanf:"secret"`
	RedirectURIs []string `koanf:"redirect_uris"`
	Scope        string   `koanf:"scope"`
}

type RegisteredResource struct {
	ID     string `koanf:"id"`
	Secret string `koanf:"secret"`
}

type RegisteredUser struct {
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Scope    string `koanf:"scope"`
}

// ResourceConfig configures the protected resource process.
type ResourceConfig struct {
	Addr                 string        `koanf:"addr"`
	ID                   string        `koanf:"id"`
	Secret               string        `koanf:"secret"`
	Realm                string        `koanf:"realm"`
	IntrospectionURL     string        `koanf:"introspection_url"`
	IntrospectionTimeout time.Duration `koanf:"introspection_timeout"`
}

// ClientConfig configures the client application process.
type ClientConfig struct {
	Addr         string        `koanf:"addr"`
	ID           string        `koanf:"id"`
	Secret       string        `koanf:"secret"`
	RedirectURI  string        `koanf:"redirect_uri"`
	Scope        string        `koanf:"scope"`
	AuthorizeURL string        `koanf:"authorize_url"`
	TokenURL     string        `koanf:"token_url"`
	RevokeURL    string        `koanf:"revoke_url"`
	ResourceURL  string        `koanf:"resource_url"`
	Timeout      time.Duration `koanf:"timeout"`
}

// DefaultAppConfig returns the demo deployment: authorization server on
// :9001, client on :9000 and protected resource on :9002.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Env: "local",
		Log: LogConfig{Level: "info", Format: "console"},
		AuthServer: AuthServerConfig{
			Addr:            ":9001",
			Issuer:          manage.DefaultIssuer,
			AccessTokenExp:  manage.DefaultAccessTokenExp,
			RefreshTokenExp: manage.DefaultRefreshTokenExp,
			RequestTTL:      store.DefaultAuthRequestTTL,
			CodeTTL:         store.DefaultAuthCodeTTL,
			MaxPending:      store.DefaultArenaCapacity,
			JanitorInterval: time.Minute,
			Storage: StorageConfig{
				Backend:      store.BackendMemory,
				ValkeyPrefix: store.DefaultValkeyPrefix,
			},
		},
		Resource: ResourceConfig{
			Addr:                 ":9002",
			ID:                   "protected-resource",
			Secret:               "protected-resource-secret",
			Realm:                "localhost:9002",
			IntrospectionURL:     "http://localhost:9001/introspect",
			IntrospectionTimeout: 10 * time.Second,
		},
		Client: ClientConfig{
			Addr:         ":9000",
			ID:           "oauth-client",
			Secret:       "oauth-client-secret",
			RedirectURI:  "http://localhost:9000/callback",
			Scope:        "read write delete",
			AuthorizeURL: "http://localhost:9001/authorize",
			TokenURL:     "http://localhost:9001/token",
			RevokeURL:    "http://localhost:9001/revoke",
			ResourceURL:  "http://localhost:9002",
			Timeout:      10 * time.Second,
		},
	}
}

func defaultClients() []RegisteredClient {
	return []RegisteredClient{{
		ID:           "oauth-client",
		Secret:       "oauth-client-secret",
		RedirectURIs: []string{"http://localhost:9000/callback"},
		Scope:        "read write delete",
	}}
}

func defaultResources() []RegisteredResource {
	return []RegisteredResource{{ID: "protected-resource", Secret: "protected-resource-secret"}}
}

func defaultUsers() []RegisteredUser {
	return []RegisteredUser{
		{Username: "alice", Password: "password", Scope: "read write delete"},
		{Username: "bob", Password: "password", Scope: "read"},
		{Username: "chuck", Password: "password", Scope: "write delete"},
		{Username: "eve", Password: "password"},
	}
}

// LoadConfig reads configuration. Loading order:
// 1) <dir>/config.yaml (optional)
// 2) <dir>/config.<envName>.yaml (optional)
// 3) Environment variables with prefix OAUTH_ mapped using __ as nested separator
//
// Registries left empty by every source get the demo registrations.
func LoadConfig(dir, envName string) (*AppConfig, error) {
	k := koanf.New(".")

	if dir != "" {
		base := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(base); err == nil {
			if err := k.Load(file.Provider(base), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", base, err)
			}
		}
		if envName != "" {
			envFile := filepath.Join(dir, "config."+envName+".yaml")
			if _, err := os.Stat(envFile); err == nil {
				if err := k.Load(file.Provider(envFile), yaml.Parser()); err != nil {
					return nil, fmt.Errorf("load %s: %w", envFile, err)
				}
			}
		}
	}

	// OAUTH_AUTHSERVER__ACCESS_TOKEN_EXP -> authserver.access_token_exp
	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	c := DefaultAppConfig()
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if envName != "" && !k.Exists("env") {
		c.Env = envName
	}
	if len(c.AuthServer.Clients) == 0 {
		c.AuthServer.Clients = defaultClients()
	}
	if len(c.AuthServer.Resources) == 0 {
		c.AuthServer.Resources = defaultResources()
	}
	if len(c.AuthServer.Users) == 0 {
		c.AuthServer.Users = defaultUsers()
	}
	return c, nil
}

var (
	cfgOnce sync.Once
	cfgInst *AppConfig
	cfgErr  error
)

// GetConfig loads and returns the singleton AppConfig from CONFIG_DIR
// (default "config") and APP_ENV (default "local").
func GetConfig() (*AppConfig, error) {
	cfgOnce.Do(func() {
		configDir := os.Getenv("CONFIG_DIR")
		if configDir == "" {
			configDir = "config"
		}
		envName := os.Getenv("APP_ENV")
		if envName == "" {
			envName = "local"
		}
		cfgInst, cfgErr = LoadConfig(configDir, envName)
	})
	return cfgInst, cfgErr
}

// ManagerConfig converts the authorization server settings for manage.NewManager.
func (c *AuthServerConfig) ManagerConfig() manage.Config {
	return manage.Config{
		Issuer:          c.Issuer,
		AccessTokenExp:  c.AccessTokenExp,
		RefreshTokenExp: c.RefreshTokenExp,
		Refreshing: manage.RefreshingConfig{
			GenerateNew:     c.RefreshRotation.GenerateNew,
			RemoveOldAccess: c.RefreshRotation.RemoveOldAccess,
		},
	}
}

// StoreOptions converts the storage settings for store.Open.
func (c *AuthServerConfig) StoreOptions() store.Options {
	return store.Options{
		Backend:         c.Storage.Backend,
		ValkeyAddr:      c.Storage.ValkeyAddr,
		ValkeyPrefix:    c.Storage.ValkeyPrefix,
		DSN:             c.Storage.DSN,
		RequestTTL:      c.RequestTTL,
		CodeTTL:         c.CodeTTL,
		MaxPending:      c.MaxPending,
		JanitorInterval: c.JanitorInterval,
	}
}

// ClientModels returns the configured client registrations.
func (c *AuthServerConfig) ClientModels() []*models.Client {
	out := make([]*models.Client, 0, len(c.Clients))
	for _, rc := range c.Clients {
		out = append(out, &models.Client{
			ID:           rc.ID,
			Secret:       rc.Secret,
			RedirectURIs: append([]string(nil), rc.RedirectURIs...),
			Scope:        models.ParseScope(rc.Scope),
		})
	}
	return out
}

// ResourceModels returns the configured protected resources.
func (c *AuthServerConfig) ResourceModels() []*models.ProtectedResource {
	out := make([]*models.ProtectedResource, 0, len(c.Resources))
	for _, rr := range c.Resources {
		out = append(out, &models.ProtectedResource{ID: rr.ID, Secret: rr.Secret})
	}
	return out
}

// UserModels returns the configured resource owners.
func (c *AuthServerConfig) UserModels() []*models.User {
	out := make([]*models.User, 0, len(c.Users))
	for _, ru := range c.Users {
		out = append(out, &models.User{Username: ru.Username, Password: ru.Password, Scope: models.ParseScope(ru.Scope)})
	}
	return out
}
