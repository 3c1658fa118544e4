package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/happyhackingspace/runbox"
)

// EnvPrefix prefixes environment overrides, e.g. RUNBOX_PROVIDER or
// RUNBOX_RESOURCES_MEMORY_MB.
const EnvPrefix = "RUNBOX"

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Provider        string                             `mapstructure:"provider"`
	Timeout         time.Duration                      `mapstructure:"timeout"`
	DefaultLanguage string                             `mapstructure:"default_language"`
	AutoDetect      bool                               `mapstructure:"auto_detect"`
	Image           string                             `mapstructure:"image"`
	Resources       runbox.ResourceConfig              `mapstructure:"resources"`
	Env             []string                           `mapstructure:"env"`
	MaxOutputBytes  int64                              `mapstructure:"max_output_bytes"`
	InternetAccess  bool                               `mapstructure:"internet_access"`
	Toolchains      map[string]runbox.ToolchainProfile `mapstructure:"toolchains"`
	Local           runbox.LocalConfig                 `mapstructure:"local"`
	Docker          runbox.DockerConfig                `mapstructure:"docker"`
	Nsjail          runbox.NsjailConfig                `mapstructure:"nsjail"`
	Log             LogConfig                          `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	d := runbox.DefaultConfig()
	v.SetDefault("provider", d.Provider)
	v.SetDefault("timeout", d.DefaultTimeout)
	v.SetDefault("auto_detect", d.AutoDetectLanguage)
	v.SetDefault("max_output_bytes", d.MaxOutputBytes)
	v.SetDefault("resources.memory_mb", d.Resources.MemoryMB)
	v.SetDefault("resources.cpus", d.Resources.CPUs)
	v.SetDefault("resources.pids_limit", d.Resources.PidsLimit)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads the config file at path. An empty path searches runbox.yaml in
// the working directory and $HOME/.runbox; finding none there is not an
// error and yields the defaults.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("runbox")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".runbox"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return decode(v)
}

// Parse reads YAML config from data.
func Parse(data []byte) (*Config, error) {
	v := newViper()
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	for i, kv := range cfg.Env {
		cfg.Env[i] = expandEnv(kv)
	}
	return &cfg, nil
}

// expandEnv replaces a ${VAR} value with the variable from the host
// environment, keeping the key.
func expandEnv(kv string) string {
	key, value, ok := strings.Cut(kv, "=")
	if !ok || !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return kv
	}
	return key + "=" + os.Getenv(value[2:len(value)-1])
}

// Options converts the file into runner options. The provider section
// matching Provider is the only one passed on.
func (c *Config) Options() []runbox.Option {
	opts := []runbox.Option{
		runbox.WithProvider(c.Provider),
		runbox.WithTimeout(c.Timeout),
		runbox.WithAutoDetect(c.AutoDetect),
		runbox.WithResources(c.Resources),
		runbox.WithMaxOutputBytes(c.MaxOutputBytes),
	}

	switch c.Provider {
	case "local":
		opts = append(opts, runbox.WithLocalConfig(c.Local))
	case "docker":
		opts = append(opts, runbox.WithDockerConfig(c.Docker))
	case "gvisor":
		opts = append(opts, runbox.WithGVisorConfig(c.Docker))
	case "nsjail":
		opts = append(opts, runbox.WithNsjailConfig(c.Nsjail))
	}

	if c.DefaultLanguage != "" {
		opts = append(opts, runbox.WithDefaultLanguage(c.DefaultLanguage))
	}
	if c.Image != "" {
		opts = append(opts, runbox.WithImage(c.Image))
	}
	if len(c.Env) > 0 {
		opts = append(opts, runbox.WithEnv(c.Env...))
	}
	if c.InternetAccess {
		opts = append(opts, runbox.WithInternetAccess())
	}
	for lang, p := range c.Toolchains {
		opts = append(opts, runbox.WithToolchain(lang, p))
	}
	return opts
}
