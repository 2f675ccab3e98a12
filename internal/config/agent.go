package config

import (
	"fmt"
	"net/url"
	"os"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

const (
	EnvAgentProviderName = "SAFESTACK_AGENT_PROVIDER_NAME"
	EnvAgentBaseURL      = "SAFESTACK_AGENT_BASE_URL"
	EnvAgentToken        = "SAFESTACK_AGENT_TOKEN"
	EnvAgentDeployment   = "SAFESTACK_AGENT_DEPLOYMENT"
	EnvAgentAPIVersion   = "SAFESTACK_AGENT_API_VERSION"
	EnvAgentAuthType     = "SAFESTACK_AGENT_AUTH_TYPE"
	EnvAgentModelName    = "SAFESTACK_AGENT_MODEL_NAME"
)

const agentName = "safestack-vision"

// Provider options read from the environment, keyed by go-agents option name.
var agentOptionEnv = map[string]string{
	"token":       EnvAgentToken,
	"deployment":  EnvAgentDeployment,
	"api_version": EnvAgentAPIVersion,
	"auth_type":   EnvAgentAuthType,
}

// FinalizeAgent completes the agent used by the frame classifier and the
// policy rewriter. go-agents defaults are the base, the config file
// overlays them, and SAFESTACK_AGENT_* variables win.
func FinalizeAgent(c *gaconfig.AgentConfig) error {
	loadAgentDefaults(c)
	loadAgentEnv(c)
	return validateAgent(c)
}

func loadAgentDefaults(c *gaconfig.AgentConfig) {
	defaults := gaconfig.DefaultAgentConfig()
	defaults.Name = agentName
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

	for key, env := range agentOptionEnv {
		if v := os.Getenv(env); v != "" {
			c.Provider.Options[key] = v
		}
	}
}

func validateAgent(c *gaconfig.AgentConfig) error {
	switch {
	case c.Name == "":
		return fmt.Errorf("name required")
	case c.Provider == nil || c.Provider.Name == "":
		return fmt.Errorf("provider name required")
	case c.Model == nil:
		return fmt.Errorf("model required")
	}

	if c.Provider.BaseURL != "" {
		u, err := url.Parse(c.Provider.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid provider base_url %q", c.Provider.BaseURL)
		}
	}

	// azure routes by deployment rather than model name
	if c.Provider.Name == "azure" {
		if _, ok := c.Provider.Options["deployment"]; !ok {
			return fmt.Errorf("azure provider requires %s", EnvAgentDeployment)
		}
	}
	return nil
}
