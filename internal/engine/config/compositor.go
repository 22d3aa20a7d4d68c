package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewCompositor() *Compositor {
	return &Compositor{}
}

func (c *Compositor) LoadEnv() error {
	v := viper.New()

	// defaults
	v.SetDefault("config_path", "./config.yaml")
	v.SetDefault("client_id", "")
	v.SetDefault("client_secret", "")
	v.SetDefault("license", "")
	v.SetDefault("debit", -1)

	// CL_*
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var env Env
	if err := v.Unmarshal(&env); err != nil {
		return fmt.Errorf("error unmarshaling env: %w", err)
	}

	c.Env = &env
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("client.name", "cortexlink")
	v.SetDefault("client.show_config", false)
	v.SetDefault("cortex.url", "wss://localhost:6868")
	v.SetDefault("cortex.credentials_file", "./credentials.ini")
	v.SetDefault("cortex.insecure_skip_verify", true)
	v.SetDefault("cortex.handshake_timeout", "30s")
	v.SetDefault("cortex.write_timeout", "10s")
	v.SetDefault("cortex.retry_budget", 5)
	v.SetDefault("cortex.retry_interval", "250ms")
	v.SetDefault("cortex.retry_max_interval", "5s")
	v.SetDefault("cortex.reconnect", false)
	v.SetDefault("cortex.reconnect_max_interval", "30s")
	v.SetDefault("stream.queue_size", 256)
	v.SetDefault("input.enabled", true)
	v.SetDefault("input.interval", "300ms")
	v.SetDefault("input.min_weight", 0.1)
	v.SetDefault("script.enabled", false)
	v.SetDefault("script.path", "./on_event.lua")
	v.SetDefault("record.enabled", false)
	v.SetDefault("record.path", "./cortexlink.db")
	v.SetDefault("status.enabled", false)
	v.SetDefault("status.address", "127.0.0.1")
	v.SetDefault("status.port", "9870")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("disable_warnings", []string{})
}

// LoadConf reads the YAML file at path on top of the defaults. A missing file is not an
// error: every key has a default.
func (c *Compositor) LoadConf(path string) error {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading config: %w", err)
	}

	var cfg Conf
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	c.Conf = &cfg
	return nil
}

func (c *Compositor) LoadCMDLine(root *cobra.Command) {
	cmdLine := &CMDLine{}
	c.CMDLine = cmdLine

	t := reflect.TypeOf(cmdLine).Elem()
	v := reflect.ValueOf(cmdLine).Elem()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		ptr := fieldVal.Addr().Interface()
		use := commandName(field.Name)

		var cmd *cobra.Command
		for _, sub := range root.Commands() {
			if sub.Name() == use {
				cmd = sub
				break
			}
		}

		if use == "root" {
			cmd = root
		}

		if cmd == nil {
			continue
		}

		Unmarshal(cmd, ptr)
	}
}

// commandName turns a CMDLine field name into its command name: CheckCredentials
// becomes check-credentials.
func commandName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func Unmarshal(cmd *cobra.Command, target any) {
	t := reflect.TypeOf(target).Elem()
	v := reflect.ValueOf(target).Elem()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		valPtr := v.Field(i).Addr().Interface()

		full := field.Tag.Get("full")
		short := field.Tag.Get("short")
		def := field.Tag.Get("def")
		desc := field.Tag.Get("desc")
		isPersistent := field.Tag.Get("persistent") == "true"

		flagSet := cmd.Flags()
		if isPersistent {
			flagSet = cmd.PersistentFlags()
		}

		switch field.Type.Kind() {
		case reflect.String:
			flagSet.StringVarP(valPtr.(*string), full, short, def, desc)

		case reflect.Bool:
			defVal, err := strconv.ParseBool(def)
			if err != nil && def != "" {
				fmt.Printf("warning: cannot parse default bool: %q\n", def)
			}
			flagSet.BoolVarP(valPtr.(*bool), full, short, defVal, desc)

		case reflect.Int:
			defVal, err := strconv.Atoi(def)
			if err != nil && def != "" {
				fmt.Printf("warning: cannot parse default int: %q\n", def)
			}
			flagSet.IntVarP(valPtr.(*int), full, short, defVal, desc)

		case reflect.Slice:
			elemKind := field.Type.Elem().Kind()
			switch elemKind {
			case reflect.String:
				defVals := []string{}
				if def != "" {
					defVals = strings.Split(def, ",")
				}
				flagSet.StringSliceVarP(valPtr.(*[]string), full, short, defVals, desc)

			default:
				fmt.Printf("unsupported slice element type: %s\n", elemKind)
			}

		default:
			fmt.Printf("unsupported field type: %s\n", field.Type.Kind())
		}
	}
}
