package runbox

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/happyhackingspace/runbox/internal/provider"
	"github.com/happyhackingspace/runbox/internal/provider/docker"
	"github.com/happyhackingspace/runbox/internal/provider/local"
	"github.com/happyhackingspace/runbox/internal/toolchain"
	"github.com/happyhackingspace/runbox/pkg/event"
)

// Config holds runner configuration.
type Config struct {
	// Provider specifies which provider to use.
	Provider string

	// ProviderConfig holds provider-specific configuration: a LocalConfig,
	// DockerConfig or NsjailConfig.
	ProviderConfig any

	// DefaultTimeout bounds a whole run, compile steps included. Zero
	// disables it.
	DefaultTimeout time.Duration

	// DefaultLanguage when the request names none and detection fails.
	DefaultLanguage string

	// AutoDetectLanguage enables automatic language detection.
	AutoDetectLanguage bool

	// Image specifies a container image, overriding the per-language one.
	Image string

	// Resources configuration.
	Resources ResourceConfig

	// Env is added to the environment of every command.
	Env []string

	// MaxOutputBytes caps each captured stream. Zero means unlimited.
	MaxOutputBytes int64

	// InternetAccess controls network access from the workspace.
	InternetAccess bool

	// Toolchains overrides command templates per language.
	Toolchains map[string]ToolchainProfile

	// Logger for debug output.
	Logger Logger

	// EventHandler for global events.
	EventHandler event.EventHandler
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:           local.Name,
		DefaultTimeout:     30 * time.Second,
		AutoDetectLanguage: true,
		MaxOutputBytes:     8 << 20,
		Resources: ResourceConfig{
			MemoryMB:  512,
			CPUs:      1,
			PidsLimit: 256,
		},
	}
}

func (c *Config) validate() error {
	switch {
	case c.Provider == "":
		return fmt.Errorf("%w: provider is empty", ErrInvalidConfiguration)
	case c.DefaultTimeout < 0:
		return fmt.Errorf("%w: negative timeout %v", ErrInvalidConfiguration, c.DefaultTimeout)
	case c.MaxOutputBytes < 0:
		return fmt.Errorf("%w: negative output limit %d", ErrInvalidConfiguration, c.MaxOutputBytes)
	}
	return nil
}

// providerConfig converts ProviderConfig into the value the registered
// provider constructor expects. Unknown types are passed through.
func (c *Config) providerConfig() (any, error) {
	switch cfg := c.ProviderConfig.(type) {
	case nil:
		return nil, nil
	case LocalConfig:
		return cfg.toProvider(), nil
	case *LocalConfig:
		return cfg.toProvider(), nil
	case DockerConfig:
		return cfg.toProvider(), nil
	case *DockerConfig:
		return cfg.toProvider(), nil
	case NsjailConfig:
		return nsjailProviderConfig(cfg)
	case *NsjailConfig:
		return nsjailProviderConfig(*cfg)
	default:
		return c.ProviderConfig, nil
	}
}

// Option configures a runner.
type Option func(*Config)

// WithProvider sets the provider.
func WithProvider(providerName string) Option {
	return func(c *Config) {
		c.Provider = providerName
	}
}

// WithLocalConfig configures the local provider.
func WithLocalConfig(cfg LocalConfig) Option {
	return func(c *Config) {
		c.Provider = local.Name
		c.ProviderConfig = cfg
	}
}

// WithDockerConfig configures the Docker provider.
func WithDockerConfig(cfg DockerConfig) Option {
	return func(c *Config) {
		c.Provider = docker.Name
		c.ProviderConfig = cfg
	}
}

// WithGVisorConfig configures the Docker provider to run containers under
// gVisor. An empty Runtime defaults to runsc.
func WithGVisorConfig(cfg DockerConfig) Option {
	return func(c *Config) {
		c.Provider = docker.GVisorName
		c.ProviderConfig = cfg
	}
}

// WithNsjailConfig configures the nsjail provider.
func WithNsjailConfig(cfg NsjailConfig) Option {
	return func(c *Config) {
		c.Provider = "nsjail"
		c.ProviderConfig = cfg
	}
}

// WithImage sets a specific container image to use.
func WithImage(image string) Option {
	return func(c *Config) {
		c.Image = image
	}
}

// WithTimeout sets the default run timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.DefaultTimeout = d
	}
}

// WithDefaultLanguage sets the language used when none is given or detected.
func WithDefaultLanguage(language string) Option {
	return func(c *Config) {
		c.DefaultLanguage = language
	}
}

// WithAutoDetect turns automatic language detection on or off.
func WithAutoDetect(enabled bool) Option {
	return func(c *Config) {
		c.AutoDetectLanguage = enabled
	}
}

// WithResources sets resource limits.
func WithResources(r ResourceConfig) Option {
	return func(c *Config) {
		c.Resources = r
	}
}

// WithEnv adds environment variables in KEY=VALUE form.
func WithEnv(env ...string) Option {
	return func(c *Config) {
		c.Env = append(c.Env, env...)
	}
}

// WithMaxOutputBytes caps each captured stream.
func WithMaxOutputBytes(n int64) Option {
	return func(c *Config) {
		c.MaxOutputBytes = n
	}
}

// WithInternetAccess enables network access from the workspace.
func WithInternetAccess() Option {
	return func(c *Config) {
		c.InternetAccess = true
	}
}

// WithToolchain overrides the command templates of a language. Empty
// fields keep the built-in values.
func WithToolchain(language string, p ToolchainProfile) Option {
	return func(c *Config) {
		if c.Toolchains == nil {
			c.Toolchains = make(map[string]ToolchainProfile)
		}
		c.Toolchains[language] = p
	}
}

// WithLogger sets a custom logger.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithEventHandler sets a global event handler.
func WithEventHandler(h event.EventHandler) Option {
	return func(c *Config) {
		c.EventHandler = h
	}
}

// ResourceConfig defines resource limits.
type ResourceConfig struct {
	MemoryMB  int     `mapstructure:"memory_mb" yaml:"memory_mb"`
	CPUs      float64 `mapstructure:"cpus" yaml:"cpus"`
	PidsLimit int     `mapstructure:"pids_limit" yaml:"pids_limit"`
}

// ToProviderConfig converts to provider.ResourceConfig.
func (r ResourceConfig) ToProviderConfig() provider.ResourceConfig {
	return provider.ResourceConfig{
		MemoryMB:  r.MemoryMB,
		CPUs:      r.CPUs,
		PidsLimit: r.PidsLimit,
	}
}

// ToolchainProfile holds the command templates of a language. Templates
// are split with shell quoting rules; {sources}, {output}, {main} and
// {workdir} are replaced before running.
type ToolchainProfile struct {
	Compile []string `mapstructure:"compile" yaml:"compile,omitempty"`
	Run     string   `mapstructure:"run" yaml:"run,omitempty"`
	Env     []string `mapstructure:"env" yaml:"env,omitempty"`
	Output  string   `mapstructure:"output" yaml:"output,omitempty"`
}

func (p ToolchainProfile) toProfile() toolchain.Profile {
	return toolchain.Profile{
		Compile: p.Compile,
		Run:     p.Run,
		Env:     p.Env,
		Output:  p.Output,
	}
}

// Logger interface for debug output.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debug(msg string, keysAndValues ...any) {}
func (NopLogger) Info(msg string, keysAndValues ...any)  {}
func (NopLogger) Warn(msg string, keysAndValues ...any)  {}
func (NopLogger) Error(msg string, keysAndValues ...any) {}

// ZapLogger adapts a zap logger.
type ZapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger wraps l. A nil l logs nothing.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{s: l.Sugar()}
}

func (l *ZapLogger) Debug(msg string, keysAndValues ...any) { l.s.Debugw(msg, keysAndValues...) }
func (l *ZapLogger) Info(msg string, keysAndValues ...any)  { l.s.Infow(msg, keysAndValues...) }
func (l *ZapLogger) Warn(msg string, keysAndValues ...any)  { l.s.Warnw(msg, keysAndValues...) }
func (l *ZapLogger) Error(msg string, keysAndValues ...any) { l.s.Errorw(msg, keysAndValues...) }

// NewWriterLogger logs to w with a console encoder, dropping entries below
// level.
func NewWriterLogger(w io.Writer, level zapcore.Level) *ZapLogger {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(w), level)
	return NewZapLogger(zap.New(core))
}

// Provider-specific configurations

// LocalConfig configures the local provider.
type LocalConfig struct {
	// BaseDir is where workspaces are created. Empty means the system
	// temp directory.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir,omitempty"`

	// Env replaces the inherited environment of every command when set.
	Env []string `mapstructure:"env" yaml:"env,omitempty"`

	// KeepWorkspaces leaves workspace directories behind for inspection.
	KeepWorkspaces bool `mapstructure:"keep_workspaces" yaml:"keep_workspaces,omitempty"`
}

func (c LocalConfig) toProvider() *local.Config {
	return &local.Config{
		BaseDir:        c.BaseDir,
		Env:            c.Env,
		KeepWorkspaces: c.KeepWorkspaces,
	}
}

// DockerConfig configures the Docker provider.
type DockerConfig struct {
	Host         string   `mapstructure:"host" yaml:"host,omitempty"`
	APIVersion   string   `mapstructure:"api_version" yaml:"api_version,omitempty"`
	DefaultImage string   `mapstructure:"default_image" yaml:"default_image,omitempty"`
	Runtime      string   `mapstructure:"runtime" yaml:"runtime,omitempty"`
	Env          []string `mapstructure:"env" yaml:"env,omitempty"`
	SkipPull     bool     `mapstructure:"skip_pull" yaml:"skip_pull,omitempty"`
}

func (c DockerConfig) toProvider() *docker.Config {
	cfg := docker.DefaultConfig()
	cfg.Host = c.Host
	cfg.APIVersion = c.APIVersion
	if c.DefaultImage != "" {
		cfg.DefaultImage = c.DefaultImage
	}
	cfg.Runtime = c.Runtime
	cfg.Env = c.Env
	cfg.SkipPull = c.SkipPull
	return cfg
}

// NsjailConfig configures the nsjail provider, which requires Linux and
// the nsjail binary. Zero fields keep the provider defaults.
type NsjailConfig struct {
	NsjailPath         string   `mapstructure:"path" yaml:"path,omitempty"`
	Chroot             string   `mapstructure:"chroot" yaml:"chroot,omitempty"`
	User               uint32   `mapstructure:"user" yaml:"user,omitempty"`
	Group              uint32   `mapstructure:"group" yaml:"group,omitempty"`
	TimeLimit          uint32   `mapstructure:"time_limit" yaml:"time_limit,omitempty"`
	MaxMemoryMB        uint32   `mapstructure:"max_memory_mb" yaml:"max_memory_mb,omitempty"`
	MaxCPUs            uint32   `mapstructure:"max_cpus" yaml:"max_cpus,omitempty"`
	MaxPids            uint32   `mapstructure:"max_pids" yaml:"max_pids,omitempty"`
	EnableNetwork      bool     `mapstructure:"enable_network" yaml:"enable_network,omitempty"`
	ReadOnlyBindMounts []string `mapstructure:"readonly_bind_mounts" yaml:"readonly_bind_mounts,omitempty"`
	Env                []string `mapstructure:"env" yaml:"env,omitempty"`
	BaseDir            string   `mapstructure:"base_dir" yaml:"base_dir,omitempty"`
}
