package config

import (
	"fmt"
	"os"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

const (
	EnvAgentProviderName = "MAILCLS_AGENT_PROVIDER_NAME"
	EnvAgentBaseURL      = "MAILCLS_AGENT_BASE_URL"
	EnvAgentToken        = "MAILCLS_AGENT_TOKEN"
	EnvAgentDeployment   = "MAILCLS_AGENT_DEPLOYMENT"
	EnvAgentAPIVersion   = "MAILCLS_AGENT_API_VERSION"
	EnvAgentAuthType     = "MAILCLS_AGENT_AUTH_TYPE"
	EnvAgentModelName    = "MAILCLS_AGENT_MODEL_NAME"
)

// AgentSettings mirrors the TOML agent section. The go-agents config types
// carry json tags only, so the section is decoded here and copied onto the
// AgentConfig during finalize.
type AgentSettings struct {
	Name     string                `toml:"name"`
	Provider AgentProviderSettings `toml:"provider"`
	Model    AgentModelSettings    `toml:"model"`
}

// AgentProviderSettings configures the model provider endpoint.
type AgentProviderSettings struct {
	Name    string         `toml:"name"`
	BaseURL string         `toml:"base_url"`
	Options map[string]any `toml:"options"`
}

// AgentModelSettings configures the model selection.
type AgentModelSettings struct {
	Name string `toml:"name"`
}

// Merge overwrites non-zero fields from overlay.
func (s *AgentSettings) Merge(overlay *AgentSettings) {
	if overlay.Name != "" {
		s.Name = overlay.Name
	}
	if overlay.Provider.Name != "" {
		s.Provider.Name = overlay.Provider.Name
	}
	if overlay.Provider.BaseURL != "" {
		s.Provider.BaseURL = overlay.Provider.BaseURL
	}
	for key, value := range overlay.Provider.Options {
		if s.Provider.Options == nil {
			s.Provider.Options = make(map[string]any)
		}
		s.Provider.Options[key] = value
	}
	if overlay.Model.Name != "" {
		s.Model.Name = overlay.Model.Name
	}
}

func (s *AgentSettings) apply(c *gaconfig.AgentConfig) {
	if s.Name != "" {
		c.Name = s.Name
	}
	if s.Provider.Name != "" || s.Provider.BaseURL != "" || len(s.Provider.Options) > 0 {
		if c.Provider == nil {
			c.Provider = &gaconfig.ProviderConfig{}
		}
		if s.Provider.Name != "" {
			c.Provider.Name = s.Provider.Name
		}
		if s.Provider.BaseURL != "" {
			c.Provider.BaseURL = s.Provider.BaseURL
		}
		if len(s.Provider.Options) > 0 {
			if c.Provider.Options == nil {
				c.Provider.Options = make(map[string]any)
			}
			for key, value := range s.Provider.Options {
				c.Provider.Options[key] = value
			}
		}
	}
	if s.Model.Name != "" {
		if c.Model == nil {
			c.Model = &gaconfig.ModelConfig{}
		}
		c.Model.Name = s.Model.Name
	}
}

// FinalizeAgent applies the service's three-phase finalize pattern to a go-agents AgentConfig:
// defaults from go-agents DefaultAgentConfig, environment variable overrides, and validation.
func FinalizeAgent(c *gaconfig.AgentConfig) error {
	loadAgentDefaults(c)
	loadAgentEnv(c)
	return validateAgent(c)
}

func loadAgentDefaults(c *gaconfig.AgentConfig) {
	defaults := gaconfig.DefaultAgentConfig()
	defaults.Merge(c)
	*c = defaults
}

func loadAgentEnv(c *gaconfig.AgentConfig) {
	if c.Provider == nil {
		c.Provider = &gaconfig.ProviderConfig{}
	}
	if c.Provider.Options == nil {
		c.Provider.Options = make(map[string]any)
	}
	if c.Model == nil {
		c.Model = &gaconfig.ModelConfig{}
	}
	if v := os.Getenv(EnvAgentProviderName); v != "" {
		c.Provider.Name = v
	}
	if v := os.Getenv(EnvAgentBaseURL); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv(EnvAgentModelName); v != "" {
		c.Model.Name = v
	}

	setOption := func(envVar, key string) {
		if v := os.Getenv(envVar); v != "" {
			c.Provider.Options[key] = v
		}
	}

	setOption(EnvAgentToken, "token")
	setOption(EnvAgentDeployment, "deployment")
	setOption(EnvAgentAPIVersion, "api_version")
	setOption(EnvAgentAuthType, "auth_type")
}

func validateAgent(c *gaconfig.AgentConfig) error {
	if c.Name == "" {
		return fmt.Errorf("name required")
	}
	if c.Provider == nil {
		return fmt.Errorf("provider required")
	}
	if c.Provider.Name == "" {
		return fmt.Errorf("provider name required")
	}
	if c.Model == nil {
		return fmt.Errorf("model required")
	}
	return nil
}
