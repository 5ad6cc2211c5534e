package actors

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"nostrdesk/engine/library"
)

// InitConfig sets up our Viper config object
func InitConfig(config *viper.Viper) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		library.LogCLI(err.Error(), 0)
	}
	config.SetDefault("rootDir", filepath.Join(homeDir, "nostrdesk")+"/")
	config.SetConfigType("yaml")
	config.SetConfigFile(config.GetString("rootDir") + "config.yaml")
	config.SetEnvPrefix("NOSTRDESK")
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()
	err = config.ReadInConfig()
	if err != nil {
		library.LogCLI(err.Error(), 4)
	}
	SetDefaults(config)
	library.SetLogLevel(config.GetInt("logLevel"))
	// Create our working directory and config file if not exist
	initRootDir(config)
	if err := touch(config.GetString("rootDir") + "config.yaml"); err != nil {
		library.LogCLI(err.Error(), 0)
	}
	err = config.WriteConfig()
	if err != nil {
		library.LogCLI(err.Error(), 1)
	}
}

// SetDefaults fills every setting the engine reads. Durations are strings ("3s").
func SetDefaults(config *viper.Viper) {
	config.SetDefault("flatFileDir", "data/")
	config.SetDefault("logLevel", 4)
	config.SetDefault("relays", []string{"wss://relay.damus.io", "wss://nos.lol"})
	config.SetDefault("fetchTimeout", "10s")
	config.SetDefault("historyRefreshInterval", "30s")
	config.SetDefault("historyOverlap", "10m")
	config.SetDefault("historyLookback", "720h")
	config.SetDefault("outboxInterval", "5m")
	config.SetDefault("paymentCheckInterval", "3s")
	config.SetDefault("paymentMaxAwait", "10m")
	config.SetDefault("profileCacheSize", 512)
	config.SetDefault("profileCacheTTL", "1h")
	config.SetDefault("backend.endpoint", "http://localhost/wp-admin/admin-ajax.php")
	config.SetDefault("backend.nonce", "")
	config.SetDefault("backend.timeout", "15s")
	// wallet connect URIs; empty disables the strategies that need them
	config.SetDefault("merchantNWC", "")
	config.SetDefault("customerNWC", "")
}

// Duration reads a duration setting, falling back to def when it does not parse.
func Duration(config *viper.Viper, key string, def time.Duration) time.Duration {
	raw := config.GetString(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		library.LogCLI(fmt.Sprintf("invalid duration %q for %s, using %s", raw, key, def), 2)
		return def
	}
	return d
}

func initRootDir(conf *viper.Viper) {
	_, err := os.Stat(conf.GetString("rootDir"))
	if os.IsNotExist(err) {
		err = os.MkdirAll(conf.GetString("rootDir"), 0700)
		if err != nil {
			library.LogCLI(err, 0)
		}
	}
}

func touch(name string) error {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	return f.Close()
}

var conf *viper.Viper

func MakeOrGetConfig() *viper.Viper {
	return conf
}

func SetConfig(config *viper.Viper) {
	conf = config
}

var secretSettings = []string{"merchantnwc", "customernwc", "backend.nonce"}

// Settings returns every setting for display, with secrets masked.
func Settings(config *viper.Viper) map[string]interface{} {
	settings := make(map[string]interface{})
	for _, key := range config.AllKeys() {
		settings[key] = config.Get(key)
		for _, secret := range secretSettings {
			if key == secret && config.GetString(key) != "" {
				settings[key] = "********"
			}
		}
	}
	return settings
}
