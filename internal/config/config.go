// Package config loads and validates enricher configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
)

// EnvPrefix namespaces environment overrides, e.g. ENRICHER_STORE_PATH.
const EnvPrefix = "ENRICHER"

// Config captures every knob of a run.
type Config struct {
	Portal      PortalConfig      `mapstructure:"portal"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Store       StoreConfig       `mapstructure:"store"`
	Columns     enrich.Columns    `mapstructure:"columns"`
	Run         RunConfig         `mapstructure:"run"`
	Attachments AttachmentsConfig `mapstructure:"attachments"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// PortalConfig addresses the portal and holds its credentials.
type PortalConfig struct {
	BaseURL           string `mapstructure:"base_url" validate:"required,url"`
	LoginPath         string `mapstructure:"login_path" validate:"required,startswith=/"`
	LandingPath       string `mapstructure:"landing_path" validate:"required"`
	DetailPath        string `mapstructure:"detail_path" validate:"required,contains={id}"`
	AttachmentPattern string `mapstructure:"attachment_pattern"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
}

// Credentials returns the portal login.
func (p PortalConfig) Credentials() enrich.Credentials {
	return enrich.Credentials{Username: p.Username, Password: p.Password}
}

// BrowserConfig configures the headless browser and page waits.
type BrowserConfig struct {
	Headless      bool          `mapstructure:"headless"`
	UserAgent     string        `mapstructure:"user_agent"`
	ExecPath      string        `mapstructure:"exec_path"`
	BlockImages   bool          `mapstructure:"block_images"`
	WindowWidth   int           `mapstructure:"window_width" validate:"gt=0"`
	WindowHeight  int           `mapstructure:"window_height" validate:"gt=0"`
	ActionTimeout time.Duration `mapstructure:"action_timeout" validate:"gt=0"`
	LoginTimeout  time.Duration `mapstructure:"login_timeout" validate:"gt=0"`
	SettleTimeout time.Duration `mapstructure:"settle_timeout" validate:"gt=0"`
	PollInterval  time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	NavigationQPS float64       `mapstructure:"navigation_qps" validate:"gte=0"`
}

// StoreConfig locates the record table.
type StoreConfig struct {
	Path  string `mapstructure:"path" validate:"required"`
	Sheet string `mapstructure:"sheet"`
}

// RunConfig bounds one pass.
type RunConfig struct {
	BatchSize              int    `mapstructure:"batch_size" validate:"gt=0"`
	CheckpointEvery        int    `mapstructure:"checkpoint_every" validate:"gt=0"`
	MaxConsecutiveFailures int    `mapstructure:"max_consecutive_failures"`
	DiagnosticPath         string `mapstructure:"diagnostic_path"`
}

// AttachmentsConfig controls attachment downloads.
type AttachmentsConfig struct {
	Dir                string        `mapstructure:"dir" validate:"required"`
	Timeout            time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Concurrency        int           `mapstructure:"concurrency" validate:"gt=0"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// Archive backends.
const (
	ArchiveNone  = "none"
	ArchiveLocal = "local"
	ArchiveGCS   = "gcs"
)

// ArchiveConfig selects where attachments and table snapshots are mirrored.
type ArchiveConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=none local gcs"`
	Dir     string `mapstructure:"dir" validate:"required_if=Backend local"`
	Bucket  string `mapstructure:"bucket" validate:"required_if=Backend gcs"`
	Prefix  string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features and file output.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups  int    `mapstructure:"max_backups" validate:"gte=0"`
}

// MetricsConfig locates the Prometheus textfile written after each run.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoadDotEnv exports the variables of a .env file that are not already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w: %w", path, enrich.ErrConfiguration, err)
	}
	return nil
}

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	bindLegacyEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w: %w", enrich.ErrConfiguration, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w: %w", enrich.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("portal.base_url", "https://pqrdsuperargo.supersalud.gov.co")
	v.SetDefault("portal.login_path", "/login")
	v.SetDefault("portal.landing_path", "/inicio")
	v.SetDefault("portal.detail_path", "/gestion/supervisar/{id}")
	v.SetDefault("portal.attachment_pattern", "anex-download")
	v.SetDefault("portal.username", "")
	v.SetDefault("portal.password", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.block_images", true)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.action_timeout", "45s")
	v.SetDefault("browser.login_timeout", "20s")
	v.SetDefault("browser.settle_timeout", "6s")
	v.SetDefault("browser.poll_interval", "250ms")
	v.SetDefault("browser.navigation_qps", 0.5)
	v.SetDefault("store.path", "Reclamos.xlsx")
	v.SetDefault("store.sheet", "")
	v.SetDefault("columns.id", "")
	v.SetDefault("columns.id_index", enrich.DefaultIDIndex)
	v.SetDefault("columns.motivos", enrich.DefaultMotivosColumn)
	v.SetDefault("columns.motivos2", enrich.DefaultMotivos2Column)
	v.SetDefault("columns.seguimiento", enrich.DefaultSeguimientoColumn)
	v.SetDefault("columns.expediente", enrich.DefaultExpedienteColumn)
	v.SetDefault("columns.attempted", enrich.DefaultAttemptedColumn)
	v.SetDefault("run.batch_size", 500)
	v.SetDefault("run.checkpoint_every", 20)
	v.SetDefault("run.max_consecutive_failures", 10)
	v.SetDefault("run.diagnostic_path", "enricher-failure.png")
	v.SetDefault("attachments.dir", "anexos")
	v.SetDefault("attachments.timeout", "15s")
	v.SetDefault("attachments.concurrency", 4)
	v.SetDefault("attachments.insecure_skip_verify", false)
	v.SetDefault("archive.backend", ArchiveNone)
	v.SetDefault("archive.dir", "")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("metrics.textfile", "")
}

// bindLegacyEnv keeps the credential variables used by earlier operator scripts working.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("portal.username", EnvPrefix+"_PORTAL_USERNAME", "PQRD_USER")
	_ = v.BindEnv("portal.password", EnvPrefix+"_PORTAL_PASSWORD", "PQRD_PASS")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return val
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate config: %w: %w", enrich.ErrConfiguration, err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, describe(fe))
		}
		return fmt.Errorf("invalid config: %s: %w", strings.Join(msgs, "; "), enrich.ErrConfiguration)
	}
	if c.Archive.Backend == ArchiveLocal && c.Archive.Dir == c.Attachments.Dir {
		return fmt.Errorf("archive.dir must differ from attachments.dir: %w", enrich.ErrConfiguration)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	key := fe.Namespace()
	if _, rest, ok := strings.Cut(key, "."); ok {
		key = rest
	}
	switch fe.Tag() {
	case "required", "required_if":
		return key + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", key, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be > %s", key, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", key, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s=%s", key, fe.Tag(), fe.Param())
	}
}
