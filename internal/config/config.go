package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/Ulysses-Xu/godbf"
)

var validate = validator.New()

// Config holds the settings tools apply when opening or creating tables.
type Config struct {
	Mode           string `mapstructure:"mode" validate:"oneof=r rb r+ rb+ r+b"`
	CodePage       string `mapstructure:"code_page" validate:"max=499"`
	WriteEOFMarker bool   `mapstructure:"write_eof_marker"`
	Transcode      bool   `mapstructure:"transcode"`
	Encoding       string `mapstructure:"encoding" validate:"omitempty,max=64"`

	Log struct {
		Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
		Format string `mapstructure:"format" validate:"oneof=text json"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "rb")
	v.SetDefault("code_page", godbf.DefaultCodePage)
	v.SetDefault("write_eof_marker", true)
	v.SetDefault("transcode", false)
	v.SetDefault("encoding", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the YAML file at path from the OS file system. An empty path
// yields the defaults. Environment variables prefixed DBF_ override the file,
// e.g. DBF_LOG_LEVEL for log.level.
func Load(path string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs is Load reading from fs.
func LoadFs(fs afero.Fs, path string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)
	v.SetEnvPrefix("DBF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, formatValidationError(err)
	}
	return &cfg, nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag()+"="+fe.Param(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// AccessMode returns the configured mode for opening existing tables.
func (c *Config) AccessMode() (godbf.AccessMode, error) {
	return godbf.ParseAccessMode(c.Mode)
}

// Logger builds the slog logger described by the log section.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// TableOptions converts the charset settings to table options.
func (c *Config) TableOptions() []godbf.Option {
	var opts []godbf.Option
	if c.Encoding != "" {
		opts = append(opts, godbf.WithEncoding(c.Encoding))
	}
	if c.Transcode {
		opts = append(opts, godbf.WithTranscoding())
	}
	return opts
}
