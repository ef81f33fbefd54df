package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppConfig        *AppConfig
	AIConfig         *AIConfig
	BrowserConfig    *BrowserConfig
	AgentConfig      *AgentConfig
	PerceptionConfig *PerceptionConfig
	SettleConfig     *SettleConfig
	ActionConfig     *ActionConfig
}

type AppConfig struct {
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	Debug         bool   `envconfig:"DEBUG" default:"false"`
	LogFile       string `envconfig:"LOG_FILE"`
	LogMaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"10"`
	LogMaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
	LogMaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"7"`
	TraceFile     string `envconfig:"TRACE_FILE"`
}

type AIConfig struct {
	Model            string        `envconfig:"AI_MODEL" default:"gemini-1.5-flash"`
	APIKey           string        `envconfig:"AI_API_KEY"`
	DeepSeekAPIKey   string        `envconfig:"AI_DEEPSEEK_API_KEY"`
	DeepSeekEndpoint string        `envconfig:"AI_DEEPSEEK_ENDPOINT" default:"https://api.deepseek.com/chat/completions"`
	GeminiBaseURL    string        `envconfig:"AI_GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta"`
	Timeout          time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
}

type BrowserConfig struct {
	Headless       bool   `envconfig:"BROWSER_HEADLESS" default:"false"`
	SlowMo         int    `envconfig:"BROWSER_SLOW_MO" default:"0"`
	Timeout        int    `envconfig:"BROWSER_TIMEOUT" default:"30000"`
	UserDataDir    string `envconfig:"BROWSER_USER_DATA_DIR"`
	ViewportWidth  int    `envconfig:"BROWSER_VIEWPORT_WIDTH" default:"1280"`
	ViewportHeight int    `envconfig:"BROWSER_VIEWPORT_HEIGHT" default:"800"`

	// SkipInstall uses the driver and browsers already on disk.
	SkipInstall bool `envconfig:"BROWSER_SKIP_INSTALL" default:"false"`
}

type AgentConfig struct {
	MaxSteps          int    `envconfig:"AGENT_MAX_STEPS" default:"20"`
	ShowOverlays      bool   `envconfig:"AGENT_SHOW_OVERLAYS" default:"true"`
	SkipMissingTarget bool   `envconfig:"AGENT_SKIP_MISSING_TARGET" default:"false"`
	StartURL          string `envconfig:"AGENT_START_URL"`
}

type PerceptionConfig struct {
	ScanLimit       int      `envconfig:"PERCEPTION_SCAN_LIMIT" default:"80"`
	TextLimit       int      `envconfig:"PERCEPTION_TEXT_LIMIT" default:"50"`
	LabelLimit      int      `envconfig:"PERCEPTION_LABEL_LIMIT" default:"30"`
	SensitiveTerms  []string `envconfig:"PERCEPTION_SENSITIVE_TERMS" default:"buy,pay,checkout,purchase,delete,remove,confirm"`
	ExtractLimit    int      `envconfig:"PERCEPTION_EXTRACT_LIMIT" default:"8"`
	CurrencyMarkers []string `envconfig:"PERCEPTION_CURRENCY_MARKERS" default:"$,₹,€,£"`
}

type SettleConfig struct {
	Tick      time.Duration `envconfig:"SETTLE_TICK" default:"500ms"`
	MaxTicks  int           `envconfig:"SETTLE_MAX_TICKS" default:"8"`
	Threshold int           `envconfig:"SETTLE_THRESHOLD" default:"2"`
}

type ActionConfig struct {
	ScrollAmount int           `envconfig:"ACTION_SCROLL_AMOUNT" default:"600"`
	SubmitDelay  time.Duration `envconfig:"ACTION_SUBMIT_DELAY" default:"200ms"`
}

func GetConfig() (*Config, error) {
	_ = godotenv.Load()

	var conf Config

	if err := envconfig.Process("", &conf); err != nil {
		return nil, fmt.Errorf("read config from env vars: %w", err)
	}

	if err := conf.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &conf, nil
}

func (c *Config) validate() error {
	switch {
	case c.AgentConfig.MaxSteps <= 0:
		return fmt.Errorf("AGENT_MAX_STEPS must be positive, got %d", c.AgentConfig.MaxSteps)
	case c.PerceptionConfig.ScanLimit <= 0:
		return fmt.Errorf("PERCEPTION_SCAN_LIMIT must be positive, got %d", c.PerceptionConfig.ScanLimit)
	case c.SettleConfig.Tick <= 0:
		return fmt.Errorf("SETTLE_TICK must be positive, got %s", c.SettleConfig.Tick)
	case c.SettleConfig.MaxTicks < 2:
		return fmt.Errorf("SETTLE_MAX_TICKS must be at least 2, got %d", c.SettleConfig.MaxTicks)
	}

	return nil
}

// IsDeepSeek reports whether model is served by the chat-completion backend.
func IsDeepSeek(model string) bool {
	return strings.Contains(strings.ToLower(model), "deepseek")
}

// KeyFor returns the credential used for model.
func (c *AIConfig) KeyFor(model string) string {
	if IsDeepSeek(model) && c.DeepSeekAPIKey != "" {
		return c.DeepSeekAPIKey
	}

	return c.APIKey
}
