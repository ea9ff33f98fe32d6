// Package config loads each agentd service binary's configuration. It keeps
// the teacher repo's pkg/config shape (a Load function building a typed
// struct through github.com/spf13/viper, environment-variable overrides via
// AutomaticEnv) narrowed to this system's fields: socket paths, capability
// defaults, block_max_milliseconds, and the entity directory path. Parsing
// the file format itself is out of scope (spec.md §6) — only the resulting
// Config struct and its defaults are specified here.
//
// Version: v0.2.0
package config

import (
	"strings"

	"github.com/spf13/viper"

	"synnergy-network/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// Config is the union of every agentd service's settings. A single service
// binary only reads the section(s) it needs; sharing one struct lets
// canonsvcd (which dials both datasvcd and randomsvcd) read their socket
// paths out of the same file its siblings load.
type Config struct {
	ProtocolSvc struct {
		ListenSocket string `mapstructure:"listen_socket" json:"listen_socket"`
		DataSocket   string `mapstructure:"data_socket" json:"data_socket"`
		RandomSocket string `mapstructure:"random_socket" json:"random_socket"`
		MetricsAddr  string `mapstructure:"metrics_addr" json:"metrics_addr"`
	} `mapstructure:"protocolsvc" json:"protocolsvc"`

	DataSvc struct {
		ListenSocket string `mapstructure:"listen_socket" json:"listen_socket"`
		DatabasePath string `mapstructure:"database_path" json:"database_path"`
		MetricsAddr  string `mapstructure:"metrics_addr" json:"metrics_addr"`
	} `mapstructure:"datasvc" json:"datasvc"`

	RandomSvc struct {
		ListenSocket string `mapstructure:"listen_socket" json:"listen_socket"`
		MetricsAddr  string `mapstructure:"metrics_addr" json:"metrics_addr"`
	} `mapstructure:"randomsvc" json:"randomsvc"`

	CanonSvc struct {
		DataSocket           string `mapstructure:"data_socket" json:"data_socket"`
		RandomSocket         string `mapstructure:"random_socket" json:"random_socket"`
		MaxTxnsPerBlock      int    `mapstructure:"max_txns_per_block" json:"max_txns_per_block"`
		BlockMaxMilliseconds int    `mapstructure:"block_max_milliseconds" json:"block_max_milliseconds"`
		MetricsAddr          string `mapstructure:"metrics_addr" json:"metrics_addr"`
	} `mapstructure:"canonsvc" json:"canonsvc"`

	// EntityDirectoryPath names the file holding the authorized-entity
	// public-key directory internal/protocolsvc.Directory is loaded from.
	// Loading it is out of scope (spec.md §6); this is just where a binary
	// would look.
	EntityDirectoryPath string `mapstructure:"entity_directory_path" json:"entity_directory_path"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
	} `mapstructure:"logging" json:"logging"`
}

// withDefaults returns a fresh viper instance carrying every field's
// fallback value, so a config file only needs to override what it cares
// about.
func withDefaults() *viper.Viper {
	v := viper.New()
	v.SetDefault("protocolsvc.listen_socket", "/run/agentd/protocolsvc.sock")
	v.SetDefault("protocolsvc.data_socket", "/run/agentd/datasvc.sock")
	v.SetDefault("protocolsvc.random_socket", "/run/agentd/randomsvc.sock")
	v.SetDefault("protocolsvc.metrics_addr", "127.0.0.1:9101")
	v.SetDefault("datasvc.listen_socket", "/run/agentd/datasvc.sock")
	v.SetDefault("datasvc.database_path", "/var/lib/agentd/data")
	v.SetDefault("datasvc.metrics_addr", "127.0.0.1:9102")
	v.SetDefault("randomsvc.listen_socket", "/run/agentd/randomsvc.sock")
	v.SetDefault("randomsvc.metrics_addr", "127.0.0.1:9103")
	v.SetDefault("canonsvc.data_socket", "/run/agentd/datasvc.sock")
	v.SetDefault("canonsvc.random_socket", "/run/agentd/randomsvc.sock")
	v.SetDefault("canonsvc.max_txns_per_block", 256)
	v.SetDefault("canonsvc.block_max_milliseconds", 2000)
	v.SetDefault("canonsvc.metrics_addr", "127.0.0.1:9104")
	v.SetDefault("entity_directory_path", "/etc/agentd/entities.yaml")
	v.SetDefault("logging.level", "info")
	return v
}

// Load reads the YAML file at path into a Config, with AGENTD_-prefixed
// environment variables (e.g. AGENTD_DATASVC_DATABASE_PATH) overriding any
// field present in the file. Unlike the teacher's Load, which mutates a
// single package-level AppConfig through viper's global instance, this
// builds an independent viper.Viper per call: agentd's four service
// binaries (and this package's own tests) can each load their own config
// without clobbering a shared global.
func Load(path string) (*Config, error) {
	v := withDefaults()
	v.SetConfigFile(path)
	v.SetEnvPrefix("AGENTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config "+path)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &cfg, nil
}

// LoadFromEnv loads the file named by the AGENTD_CONFIG environment
// variable, defaulting to "agentd.yaml" in the current directory.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("AGENTD_CONFIG", "agentd.yaml"))
}
