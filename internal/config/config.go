package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envOWADomain   = "WEBOUTLOOK_DOMAIN"
	envOWAUsername = "WEBOUTLOOK_USERNAME"
	envOWAPassword = "WEBOUTLOOK_PASSWORD"
	envS3Endpoint  = "WEBOUTLOOK_S3_ENDPOINT"
	envS3Region    = "WEBOUTLOOK_S3_REGION"
	envS3Bucket    = "WEBOUTLOOK_S3_BUCKET"
	envS3Key       = "WEBOUTLOOK_S3_KEY"
	envS3Secret    = "WEBOUTLOOK_S3_SECRET"
	envWebhookURL  = "WEBOUTLOOK_WEBHOOK_URL"
)

// Config holds non-secret configuration loaded from YAML. OWA has no way to
// enumerate folders, so the folder inventory lives here.
type Config struct {
	Folders []Folder `yaml:"folders"`
	Watch   Watch    `yaml:"watch"`
	Serve   Serve    `yaml:"serve"`
	Export  Export   `yaml:"export"`
}

// OWAEnv holds the webmail connection details from environment variables.
type OWAEnv struct {
	Domain   string
	Username string
	Password string
}

// S3Env holds the object storage details for S3-backed exports.
type S3Env struct {
	Endpoint string
	Region   string
	Bucket   string
	Key      string
	Secret   string
}

// Folder describes one folder the tooling should know about.
type Folder struct {
	Name   string           `yaml:"name"`
	Export bool             `yaml:"export"`
	Match  *MessageMatchers `yaml:"match"`
}

// MessageMatchers filter messages by id or body during exports and watches.
type MessageMatchers struct {
	IdRegex   []string `yaml:"id_regex"`
	BodyRegex []string `yaml:"body_regex"`
}

func (m *MessageMatchers) IsEmpty() bool {
	if m == nil {
		return true
	}
	return len(m.IdRegex) == 0 && len(m.BodyRegex) == 0
}

// Watch configures the new-message poll loop.
type Watch struct {
	Folder   string `yaml:"folder"`
	Interval string `yaml:"interval"`
}

// Serve configures the web UI. Command-line flags win over these.
type Serve struct {
	Addr string `yaml:"addr"`
}

// Export configures where exported messages land.
type Export struct {
	Dir string `yaml:"dir"`
}

func ParseRelativeDuration(value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	if strings.HasSuffix(trimmed, "d") {
		daysValue := strings.TrimSuffix(trimmed, "d")
		days, err := strconv.ParseFloat(strings.TrimSpace(daysValue), 64)
		if err != nil {
			return 0, err
		}
		if days < 0 {
			return 0, errors.New("duration must be positive")
		}
		return time.Duration(days * float64(24*time.Hour)), nil
	}
	dur, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, err
	}
	if dur < 0 {
		return 0, errors.New("duration must be positive")
	}
	return dur, nil
}

// Load reads configuration from a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ValidateEnv ensures required environment variables are set.
func ValidateEnv() error {
	missing := []string{}
	for _, name := range requiredEnvVars() {
		if strings.TrimSpace(os.Getenv(name)) == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
}

// OWAEnvFromEnv loads the webmail connection details and validates required
// entries. The password is optional here; ResolvePassword covers the keyring
// and prompt fallbacks.
func OWAEnvFromEnv() (OWAEnv, error) {
	missing := []string{}

	domain := strings.TrimSpace(os.Getenv(envOWADomain))
	if domain == "" {
		missing = append(missing, envOWADomain)
	}

	username := strings.TrimSpace(os.Getenv(envOWAUsername))
	if username == "" {
		missing = append(missing, envOWAUsername)
	}

	if len(missing) > 0 {
		return OWAEnv{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return OWAEnv{
		Domain:   domain,
		Username: username,
		Password: strings.TrimSpace(os.Getenv(envOWAPassword)),
	}, nil
}

// S3EnvFromEnv loads the object storage details and validates required entries.
func S3EnvFromEnv() (S3Env, error) {
	missing := []string{}

	endpoint := strings.TrimSpace(os.Getenv(envS3Endpoint))
	if endpoint == "" {
		missing = append(missing, envS3Endpoint)
	}

	region := strings.TrimSpace(os.Getenv(envS3Region))
	if region == "" {
		missing = append(missing, envS3Region)
	}

	bucket := strings.TrimSpace(os.Getenv(envS3Bucket))
	if bucket == "" {
		missing = append(missing, envS3Bucket)
	}

	key := strings.TrimSpace(os.Getenv(envS3Key))
	if key == "" {
		missing = append(missing, envS3Key)
	}

	secret := strings.TrimSpace(os.Getenv(envS3Secret))
	if secret == "" {
		missing = append(missing, envS3Secret)
	}

	if len(missing) > 0 {
		return S3Env{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return S3Env{
		Endpoint: endpoint,
		Region:   region,
		Bucket:   bucket,
		Key:      key,
		Secret:   secret,
	}, nil
}

// Summary returns a concise config summary for validation runs.
func Summary(cfg Config) string {
	reportingStatus := "disabled"
	if ReportingEnabled() {
		reportingStatus = "enabled"
	}
	watchFolder := defaultIfEmpty(cfg.Watch.Folder, "(not set)")
	return fmt.Sprintf(
		"Config summary\n"+
			"- folders: %d\n"+
			"- watch folder: %s\n"+
			"- reporting webhook: %s",
		len(cfg.Folders),
		watchFolder,
		reportingStatus,
	)
}

// ReportingEnabled returns true when a webhook URL is configured via env var.
func ReportingEnabled() bool {
	return strings.TrimSpace(os.Getenv(envWebhookURL)) != ""
}

// WebhookURL returns the announcement webhook destination, empty when unset.
func WebhookURL() string {
	return strings.TrimSpace(os.Getenv(envWebhookURL))
}

func requiredEnvVars() []string {
	return []string{
		envOWADomain,
		envOWAUsername,
	}
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// Validate performs basic validation on non-secret config.
func Validate(cfg Config) error {
	if len(cfg.Folders) == 0 {
		return errors.New("config must define at least one folder")
	}
	for i, folder := range cfg.Folders {
		if strings.TrimSpace(folder.Name) == "" {
			return fmt.Errorf("folder %d must define a name", i+1)
		}
	}
	if cfg.Watch.Interval != "" {
		if _, err := ParseRelativeDuration(cfg.Watch.Interval); err != nil {
			return fmt.Errorf("invalid watch.interval: %w", err)
		}
	}
	return nil
}

// FolderNames lists the configured folder names in file order.
func FolderNames(cfg Config) []string {
	names := make([]string, 0, len(cfg.Folders))
	for _, folder := range cfg.Folders {
		names = append(names, folder.Name)
	}
	return names
}
