package config

// Config is the root configuration for agentloop.
type Config struct {
	Model     ModelConfig     `yaml:"model,omitempty"`
	Agent     AgentConfig     `yaml:"agent,omitempty"`
	Embedding EmbeddingConfig `yaml:"embedding,omitempty"`
	Storage   StorageConfig   `yaml:"storage,omitempty"`
	Knowledge KnowledgeConfig `yaml:"knowledge,omitempty"`
	Tools     ToolsConfig     `yaml:"tools,omitempty"`
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	IRC       *IRCConfig      `yaml:"irc,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// ModelConfig selects the completion backend.
type ModelConfig struct {
	Provider  string          `yaml:"provider,omitempty"` // "gemini" | "openai" | "ollama" | "mock"
	APIKey    string          `yaml:"apiKey,omitempty"`
	Model     string          `yaml:"model,omitempty"`
	Endpoint  string          `yaml:"endpoint,omitempty"` // base URL override
	Fallbacks []FallbackModel `yaml:"fallbacks,omitempty"`
	Retries   int             `yaml:"retries,omitempty"`
}

// FallbackModel is tried after the primary model fails with a retryable error.
type FallbackModel struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// AgentConfig controls the tool-calling loop.
type AgentConfig struct {
	MaxRounds    int      `yaml:"maxRounds,omitempty"`
	SystemPrompt string   `yaml:"systemPrompt,omitempty"`
	MaxTokens    int      `yaml:"maxTokens,omitempty"`
	Temperature  *float64 `yaml:"temperature,omitempty"`
	Name         string   `yaml:"name,omitempty"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider string `yaml:"provider,omitempty"` // "gemini" | "openai" | "" (disabled)
	APIKey   string `yaml:"apiKey,omitempty"`
	Model    string `yaml:"model,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// StorageConfig points the storage inspector at the local model cache.
type StorageConfig struct {
	CacheDir   string `yaml:"cacheDir,omitempty"`
	QuotaBytes int64  `yaml:"quotaBytes,omitempty"` // 0 means use the filesystem size
}

// KnowledgeConfig locates the knowledge database used by the lookup tool.
type KnowledgeConfig struct {
	DBPath string `yaml:"dbPath,omitempty"`
}

// ToolsConfig lists enabled built-in tools and their credentials.
type ToolsConfig struct {
	Enabled      []string           `yaml:"enabled,omitempty"`
	Weather      WeatherConfig      `yaml:"weather,omitempty"`
	Mail         MailConfig         `yaml:"mail,omitempty"`
	DigitalOcean DigitalOceanConfig `yaml:"digitalocean,omitempty"`
	Drive        DriveConfig        `yaml:"drive,omitempty"`
}

// WeatherConfig configures the NOAA weather tool.
type WeatherConfig struct {
	UserAgent string `yaml:"userAgent,omitempty"`
}

// MailConfig configures the IMAP inbox tool.
type MailConfig struct {
	Server   string `yaml:"server,omitempty"` // host:port
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Mailbox  string `yaml:"mailbox,omitempty"`
}

// DigitalOceanConfig configures the droplet inventory tool.
type DigitalOceanConfig struct {
	Token string `yaml:"token,omitempty"`
}

// DriveConfig configures the Google Drive search tool.
type DriveConfig struct {
	CredentialsFile string `yaml:"credentialsFile,omitempty"`
	TokenFile       string `yaml:"tokenFile,omitempty"`
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	TLS            GatewayTLS  `yaml:"tls,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// IRCConfig defines the IRC bot settings.
type IRCConfig struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port,omitempty"`
	Nick     string   `yaml:"nick"`
	Password string   `yaml:"password,omitempty"`
	Channels []string `yaml:"channels"`
	UseTLS   bool     `yaml:"useTLS,omitempty"`
	SASL     bool     `yaml:"sasl,omitempty"`
	Owner    string   `yaml:"owner,omitempty"` // only accept messages from this nick when set
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}
