package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// GatewaySettings are the CoinGate merchant settings used when no
// configuration row has been saved through the API yet (self-hosted
// bootstrap). receiveCurrency is the ordinal choice 0-4.
type GatewaySettings struct {
	AuthToken       string `mapstructure:"authToken"`
	ReceiveCurrency int    `mapstructure:"receiveCurrency"`
	TestMode        string `mapstructure:"testMode"`
}

func DefaultGatewaySettings() GatewaySettings {
	return GatewaySettings{
		ReceiveCurrency: 0,
		TestMode:        "test",
	}
}

// GatewayFileHolder holds file-based gateway settings with hot reload.
type GatewayFileHolder struct {
	current atomic.Value // holds GatewaySettings
}

func NewGatewayFileHolder() (*GatewayFileHolder, error) {
	v := viper.New()

	v.SetConfigName("gateway")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/coinflow/config")
	v.AddConfigPath("/etc/coinflow")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COINFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultGatewaySettings()
		v.SetDefault("gateway.receiveCurrency", defaults.ReceiveCurrency)
		v.SetDefault("gateway.testMode", defaults.TestMode)
	}

	var settings GatewaySettings
	if err := v.UnmarshalKey("gateway", &settings); err != nil {
		return nil, err
	}
	if err := validateGatewaySettings(settings); err != nil {
		return nil, err
	}

	holder := &GatewayFileHolder{}
	holder.current.Store(settings)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated GatewaySettings
		if err := v.UnmarshalKey("gateway", &updated); err != nil {
			log.Printf("[gateway-config] reload failed: %v", err)
			return
		}
		if err := validateGatewaySettings(updated); err != nil {
			log.Printf("[gateway-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[gateway-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *GatewayFileHolder) Get() GatewaySettings {
	return h.current.Load().(GatewaySettings)
}

func validateGatewaySettings(settings GatewaySettings) error {
	if settings.ReceiveCurrency < 0 || settings.ReceiveCurrency > 4 {
		return errors.New("gateway.receiveCurrency must be between 0 and 4")
	}
	switch settings.TestMode {
	case "test", "live":
		return nil
	default:
		return errors.New("gateway.testMode must be test or live")
	}
}
