package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables;
// every knob has a compiled default so the service runs without a file.
type Config struct {
	HTTP    HTTPConfig
	Feeds   FeedsConfig
	Trading TradingConfig
	State   StateConfig

	// Tokens is the tracked instrument universe, in display order.
	Tokens []string

	// ParadexMarkets maps internal token symbols to Paradex market tickers.
	ParadexMarkets map[string]string `mapstructure:"paradex_markets"`
}

// HTTPConfig defines the local API server settings.
type HTTPConfig struct {
	Host string
	Port int
}

// FeedConfig defines the endpoints and timing for one venue's feed.
type FeedConfig struct {
	WSURL          string        `mapstructure:"ws_url"`
	APIURL         string        `mapstructure:"api_url"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

// FeedsConfig groups the two venue feeds.
type FeedsConfig struct {
	Hyperliquid FeedConfig
	Paradex     FeedConfig
}

// TradingConfig defines the paper-trading simulation settings.
type TradingConfig struct {
	// EntryThresholdPct and ExitThresholdPct are the auto-pilot spread
	// thresholds, in percent. Entry is intentionally higher than exit to
	// avoid immediate self-cancelling churn.
	EntryThresholdPct float64 `mapstructure:"entry_threshold_pct"`
	ExitThresholdPct  float64 `mapstructure:"exit_threshold_pct"`
	// NotionalUSD is the target USD notional for auto-pilot entries.
	NotionalUSD float64 `mapstructure:"notional_usd"`
	// RefreshInterval throttles opportunity recomputation and auto-pilot
	// decisions. Zero or negative means every-tick (real-time) mode.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// StateConfig defines where the persisted auto-pilot flag lives.
type StateConfig struct {
	Path string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "127.0.0.1")
	v.SetDefault("http.port", 8080)

	v.SetDefault("feeds.hyperliquid.ws_url", "wss://api.hyperliquid.xyz/ws")
	v.SetDefault("feeds.hyperliquid.api_url", "https://api.hyperliquid.xyz")
	v.SetDefault("feeds.hyperliquid.reconnect_delay", 5*time.Second)
	v.SetDefault("feeds.hyperliquid.poll_interval", 5*time.Second)

	v.SetDefault("feeds.paradex.ws_url", "wss://ws.api.prod.paradex.trade/v1")
	v.SetDefault("feeds.paradex.api_url", "https://api.prod.paradex.trade")
	v.SetDefault("feeds.paradex.reconnect_delay", 5*time.Second)

	v.SetDefault("trading.entry_threshold_pct", 0.08)
	v.SetDefault("trading.exit_threshold_pct", 0.01)
	v.SetDefault("trading.notional_usd", 100.0)
	v.SetDefault("trading.refresh_interval", 5*time.Second)

	v.SetDefault("state.path", "autopilot.json")

	v.SetDefault("tokens", []string{"BTC", "ETH", "BNB", "SOL", "HYPE", "AVAX", "MATIC", "PAXG"})
	v.SetDefault("paradex_markets", map[string]string{
		"BTC":   "BTC-USD-PERP",
		"ETH":   "ETH-USD-PERP",
		"BNB":   "BNB-USD-PERP",
		"SOL":   "SOL-USD-PERP",
		"AVAX":  "AVAX-USD-PERP",
		"HYPE":  "HYPE-USD-PERP",
		"MATIC": "MATIC-USD-PERP",
		"PAXG":  "PAXG-USD-PERP",
	})
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults cover every setting.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

// ParadexMarket returns the Paradex market ticker for an internal token
// symbol, falling back to the TOKEN-USD-PERP convention.
func (c Config) ParadexMarket(token string) string {
	if m, ok := c.ParadexMarkets[token]; ok {
		return m
	}
	return token + "-USD-PERP"
}

// TokenForParadexMarket reverse-maps a Paradex market ticker to the internal
// token symbol; ok is false for untracked markets.
func (c Config) TokenForParadexMarket(market string) (string, bool) {
	for token, m := range c.ParadexMarkets {
		if m == market {
			return token, true
		}
	}
	return "", false
}
