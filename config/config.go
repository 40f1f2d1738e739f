package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:",squash"`
	Feishu FeishuConfig `mapstructure:",squash"`
	LLM    LLMConfig    `mapstructure:",squash"`
	Data   DataConfig   `mapstructure:",squash"`
}

type ServerConfig struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"` // "development", "production"
	ServiceName    string `mapstructure:"SERVICE_NAME"`
	ServiceVersion string `mapstructure:"SERVICE_VERSION"`
}

type FeishuConfig struct {
	AppID             string `mapstructure:"FEISHU_APP_ID"`
	AppSecret         string `mapstructure:"FEISHU_APP_SECRET"`
	EncryptKey        string `mapstructure:"FEISHU_ENCRYPT_KEY"`
	VerificationToken string `mapstructure:"FEISHU_VERIFICATION_TOKEN"`
	APIURL            string `mapstructure:"FEISHU_API_URL"`
	WSEnabled         bool   `mapstructure:"FEISHU_WS_ENABLED"`
}

type LLMConfig struct {
	Provider  string `mapstructure:"LLM_PROVIDER"` // "nvidia", "deepseek", "openai", "openrouter"
	APIKey    string `mapstructure:"LLM_API_KEY"`
	APIURL    string `mapstructure:"LLM_API_URL"`
	ModelName string `mapstructure:"LLM_MODEL_NAME"` // e.g. "meta/llama-3.1-70b-instruct", "deepseek-chat"
}

type DataConfig struct {
	Source        string        `mapstructure:"DATA_SOURCE"` // "live" or "mock"
	BinanceURL    string        `mapstructure:"BINANCE_API_URL"`
	CoinGeckoURL  string        `mapstructure:"COINGECKO_API_URL"`
	FearGreedURL  string        `mapstructure:"FNG_API_URL"`
	YahooURL      string        `mapstructure:"YAHOO_API_URL"`
	HTTPTimeout   time.Duration `mapstructure:"HTTP_TIMEOUT"`
	PriceCacheTTL time.Duration `mapstructure:"PRICE_CACHE_TTL"`
}

const (
	DefaultLLMAPIURL = "https://integrate.api.nvidia.com/v1"
	DefaultLLMModel  = "meta/llama-3.1-70b-instruct"
)

var AppConfig *Config

func Init() {
	cfg, err := Load(".env")
	if err != nil {
		log.Fatalf("Unable to decode into struct: %v", err)
	}
	AppConfig = cfg
}

// Load reads the dotenv file at path (if any) and the process environment.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: %s not loaded, relying on environment variables: %v", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AutomaticEnv only resolves keys viper already knows about, so every key
// gets a default here, even an empty one.
func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVICE_NAME", "lark-market-bot")
	v.SetDefault("SERVICE_VERSION", "1.0.0")

	v.SetDefault("FEISHU_APP_ID", "")
	v.SetDefault("FEISHU_APP_SECRET", "")
	v.SetDefault("FEISHU_ENCRYPT_KEY", "")
	v.SetDefault("FEISHU_VERIFICATION_TOKEN", "")
	v.SetDefault("FEISHU_API_URL", "https://open.feishu.cn/open-apis")
	v.SetDefault("FEISHU_WS_ENABLED", false)

	v.SetDefault("LLM_PROVIDER", "nvidia")
	v.SetDefault("LLM_API_KEY", "")
	v.SetDefault("LLM_API_URL", DefaultLLMAPIURL)
	v.SetDefault("LLM_MODEL_NAME", DefaultLLMModel)

	v.SetDefault("DATA_SOURCE", "live")
	v.SetDefault("BINANCE_API_URL", "https://api.binance.com")
	v.SetDefault("COINGECKO_API_URL", "https://api.coingecko.com")
	v.SetDefault("FNG_API_URL", "https://api.alternative.me")
	v.SetDefault("YAHOO_API_URL", "https://query1.finance.yahoo.com")
	v.SetDefault("HTTP_TIMEOUT", 10*time.Second)
	v.SetDefault("PRICE_CACHE_TTL", 5*time.Second)
}
