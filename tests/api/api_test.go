package api_test

import (
	"testing"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"github.com/Samy8769/mail-classifier-3/internal/api"
	"github.com/Samy8769/mail-classifier-3/internal/config"
	"github.com/Samy8769/mail-classifier-3/internal/infrastructure"
	"github.com/Samy8769/mail-classifier-3/pkg/database"
	"github.com/Samy8769/mail-classifier-3/pkg/middleware"
	"github.com/Samy8769/mail-classifier-3/pkg/pagination"
)

func validConfig() *config.Config {
	return &config.Config{
		Agent: gaconfig.AgentConfig{
			Name: "test-agent",
			Provider: &gaconfig.ProviderConfig{
				Name:    "ollama",
				BaseURL: "http://localhost:11434",
				Options: make(map[string]any),
			},
			Model: &gaconfig.ModelConfig{
				Name: "llama3.1:8b",
			},
		},
		Server: config.ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     "1m",
			WriteTimeout:    "15m",
			ShutdownTimeout: "30s",
		},
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "mailcls",
			User:            "mailcls",
			Password:        "mailcls",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		API: config.APIConfig{
			BasePath: "/api",
			CORS: middleware.CORSConfig{
				Enabled: false,
			},
			Pagination: pagination.Config{
				DefaultPageSize: 20,
				MaxPageSize:     100,
			},
		},
		Pipeline: config.PipelineConfig{
			MaxChunkTokens:    32000,
			OverlapTokens:     200,
			CharsPerToken:     4,
			TokenSafetyFactor: 0.9,
			MaxRulePasses:     5,
			MaxRetries:        2,
			RetryBackoff:      "2s",
			CallTimeout:       "90s",
			Concurrency:       4,
			SummaryAxis:       "resume",
		},
		ShutdownTimeout: "30s",
		Version:         "0.1.0",
	}
}

func setupInfra(t *testing.T) *infrastructure.Infrastructure {
	t.Helper()
	infra, err := infrastructure.New(validConfig())
	if err != nil {
		t.Fatalf("infrastructure.New() error = %v", err)
	}
	return infra
}

func TestNewModule(t *testing.T) {
	cfg := validConfig()
	infra := setupInfra(t)

	m, err := api.NewModule(cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	if m.Prefix() != "/api" {
		t.Errorf("prefix: got %s, want /api", m.Prefix())
	}
}

func TestNewRuntime(t *testing.T) {
	cfg := validConfig()
	infra := setupInfra(t)

	runtime := api.NewRuntime(cfg, infra)

	if runtime.Pagination.DefaultPageSize != 20 {
		t.Errorf("pagination default page size: got %d, want 20", runtime.Pagination.DefaultPageSize)
	}
	if runtime.Pagination.MaxPageSize != 100 {
		t.Errorf("pagination max page size: got %d, want 100", runtime.Pagination.MaxPageSize)
	}
	if runtime.Logger == nil {
		t.Error("runtime logger is nil")
	}
	if runtime.Database == nil {
		t.Error("runtime database is nil")
	}
	if runtime.Lifecycle == nil {
		t.Error("runtime lifecycle is nil")
	}
	if runtime.Pipeline.MaxChunkTokens != 32000 {
		t.Errorf("pipeline max chunk tokens: got %d, want 32000", runtime.Pipeline.MaxChunkTokens)
	}
}

func TestNewDomain(t *testing.T) {
	cfg := validConfig()
	infra := setupInfra(t)
	runtime := api.NewRuntime(cfg, infra)

	domain := api.NewDomain(runtime)
	if domain == nil {
		t.Fatal("NewDomain() returned nil")
	}
	if domain.Taxonomy == nil {
		t.Error("taxonomy system is nil")
	}
	if domain.Emails == nil {
		t.Error("emails system is nil")
	}
	if domain.Classifications == nil {
		t.Error("classifications system is nil")
	}
}
