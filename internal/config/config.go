package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig               `mapstructure:"server"`
	Logging    LoggingConfig              `mapstructure:"logging"`
	Storage    StorageConfig              `mapstructure:"storage"`
	Inference  InferenceConfig            `mapstructure:"inference"`
	MCPServers map[string]MCPServerConfig `mapstructure:"mcp_servers"`
	Tools      ToolsConfig                `mapstructure:"tools"`
	WebSearch  WebSearchConfig            `mapstructure:"web_search"`
}

// InferenceConfig points at an OpenAI-compatible chat completions endpoint.
type InferenceConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	AuxiliaryModel string `mapstructure:"auxiliary_model"` // Used for titles and icons
	Timeout        int    `mapstructure:"timeout"`
	MaxIterations  int    `mapstructure:"max_iterations"` // Tool-calling rounds per turn
}

// MCPServerConfig describes a remote MCP server reached over streamable HTTP.
type MCPServerConfig struct {
	Name    string            `mapstructure:"name"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Enabled bool              `mapstructure:"enabled"`
	Timeout int               `mapstructure:"timeout"`
}

type ToolsConfig struct {
	SkipConfirmation bool `mapstructure:"skip_confirmation"`
}

// WebSearchConfig represents web search configuration
type WebSearchConfig struct {
	Enabled   bool                      `mapstructure:"enabled"`
	Default   string                    `mapstructure:"default"` // Default provider name
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig represents a generic search provider configuration
type ProviderConfig struct {
	Type       string `mapstructure:"type"` // "mcp", "firecrawl"
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Server     string `mapstructure:"server"`      // MCP: server ID from mcp_servers
	ToolName   string `mapstructure:"tool_name"`   // MCP: tool name to call
	QueryParam string `mapstructure:"query_param"` // MCP: query parameter name
	Timeout    int    `mapstructure:"timeout"`
	MaxResults int    `mapstructure:"max_results"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"` // Database path, default ./data/conversations.db
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from cfgFile (or the default search paths), the
// environment and .env files. A missing config file is not an error.
func Load(cfgFile string) (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()
	setDefaults(v)

	// Replace . with _ for nested config keys
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("CHATBRIDGE")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	for id, server := range cfg.MCPServers {
		if server.Name == "" {
			server.Name = id
			cfg.MCPServers[id] = server
		}
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 300)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Storage defaults
	v.SetDefault("storage.path", "./data/conversations.db")

	// Inference defaults
	v.SetDefault("inference.base_url", "https://api.openai.com/v1")
	v.SetDefault("inference.model", "gpt-4o-mini")
	v.SetDefault("inference.timeout", 300)
	v.SetDefault("inference.max_iterations", 5)

	v.SetDefault("tools.skip_confirmation", true)

	// Web Search defaults
	v.SetDefault("web_search.enabled", true)
	v.SetDefault("web_search.default", "firecrawl")
	v.SetDefault("web_search.providers.firecrawl.type", "firecrawl")
	v.SetDefault("web_search.providers.firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("web_search.providers.firecrawl.timeout", 30)
	v.SetDefault("web_search.providers.firecrawl.max_results", 5)
}
