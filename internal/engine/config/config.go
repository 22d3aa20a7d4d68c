// Package config provides configuration management for cortexlink.
// It is built on top of viper for files and environment and cobra for flags.
package config

import (
	"time"
)

type CompositorContract interface {
	LoadEnv() error
	LoadConf(path string) error
	LoadCredentials(path string) error
}

type Compositor struct {
	CMDLine     *CMDLine
	Conf        *Conf
	Env         *Env
	Credentials *Credentials
}

type Conf struct {
	Client          *Client   `mapstructure:"client"`
	Cortex          *Cortex   `mapstructure:"cortex"`
	Stream          *Stream   `mapstructure:"stream"`
	Input           *Input    `mapstructure:"input"`
	Script          *Script   `mapstructure:"script"`
	Record          *Record   `mapstructure:"record"`
	Status          *Status   `mapstructure:"status"`
	Log             *Log      `mapstructure:"log"`
	DisableWarnings *[]string `mapstructure:"disable_warnings"`
}

type Client struct {
	Name       *string `mapstructure:"name"`
	ShowConfig *bool   `mapstructure:"show_config"`
}

type Cortex struct {
	URL                  *string        `mapstructure:"url"`
	CredentialsFile      *string        `mapstructure:"credentials_file"`
	InsecureSkipVerify   *bool          `mapstructure:"insecure_skip_verify"`
	HandshakeTimeout     *time.Duration `mapstructure:"handshake_timeout"`
	WriteTimeout         *time.Duration `mapstructure:"write_timeout"`
	RetryBudget          *int           `mapstructure:"retry_budget"`
	RetryInterval        *time.Duration `mapstructure:"retry_interval"`
	RetryMaxInterval     *time.Duration `mapstructure:"retry_max_interval"`
	Reconnect            *bool          `mapstructure:"reconnect"`
	ReconnectMaxInterval *time.Duration `mapstructure:"reconnect_max_interval"`
}

type Stream struct {
	QueueSize *int `mapstructure:"queue_size"`
}

type Input struct {
	Enabled   *bool          `mapstructure:"enabled"`
	Interval  *time.Duration `mapstructure:"interval"`
	MinWeight *float64       `mapstructure:"min_weight"`
}

type Script struct {
	Enabled *bool   `mapstructure:"enabled"`
	Path    *string `mapstructure:"path"`
}

type Record struct {
	Enabled *bool   `mapstructure:"enabled"`
	Path    *string `mapstructure:"path"`
}

type Status struct {
	Enabled *bool   `mapstructure:"enabled"`
	Address *string `mapstructure:"address"`
	Port    *string `mapstructure:"port"`
}

type Log struct {
	Level   *string `mapstructure:"level"`
	OutPath *string `mapstructure:"output"`
}

// Env structure for environment variables
type Env struct {
	ConfigPath   *string `mapstructure:"config_path"`
	ClientID     *string `mapstructure:"client_id"`
	ClientSecret *string `mapstructure:"client_secret"`
	License      *string `mapstructure:"license"`
	Debit        *int    `mapstructure:"debit"`
}

// Credentials are the application keys issued for the Cortex service.
type Credentials struct {
	ClientID     string `ini:"client_id"`
	ClientSecret string `ini:"client_secret"`
	License      string `ini:"license"`
	Debit        int    `ini:"debit"`
}

type CMDLine struct {
	Run              Run
	CheckCredentials CheckCredentials
	Root             Root
}

type Root struct {
	Debug bool `persistent:"true" full:"debug" short:"d" def:"false" desc:"Set debug mode"`
}

type Run struct {
	ConfigPath string `persistent:"true" full:"config" short:"c" def:"" desc:"Path to configuration file"`
	URL        string `full:"url" short:"u" def:"" desc:"Cortex service URL, overrides cortex.url"`
}

type CheckCredentials struct {
	ConfigPath string `full:"config" short:"c" def:"" desc:"Path to configuration file"`
}
