package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultNotionBaseURL = "https://api.notion.com"
	DefaultNotionVersion = "2022-06-28"
	DefaultTitlePrefix   = "🟠 "
	DefaultWindowDays    = 2
	DefaultHorizonDays   = 30
	DefaultTimezone      = "UTC"

	OnUnknownSkip   = "skip"
	OnUnknownCreate = "create"
)

// Environment variables that override file values.
const (
	EnvToken      = "NOTION_TOKEN"
	EnvDatabaseID = "NOTION_DATABASE_ID"
	EnvAssigneeID = "NOTION_ASSIGNEE_ID"
	EnvICSPath    = "ICS_PATH"
	EnvWindowDays = "NOTIONCAL_WINDOW_DAYS"
	EnvOnUnknown  = "NOTIONCAL_ON_UNKNOWN"
	EnvLogLevel   = "NOTIONCAL_LOG_LEVEL"
)

// PropertyNames maps record fields to the database's column names.
type PropertyNames struct {
	Title    string `yaml:"title" json:"title"`
	Created  string `yaml:"created" json:"created"`
	Due      string `yaml:"due" json:"due"`
	Assignee string `yaml:"assignee" json:"assignee"`
}

// NotionConfig holds everything needed to talk to the target database.
type NotionConfig struct {
	// Token is the integration secret sent as a bearer token.
	Token string `yaml:"token" json:"-"`

	// DatabaseID accepts the 32-char form copied from a Notion URL or the
	// dashed UUID form. Validate rewrites it to the dashed form.
	DatabaseID string `yaml:"database_id" json:"database_id"`

	// AssigneeID is the Notion user set as owner of every created record.
	AssigneeID string `yaml:"assignee_id" json:"assignee_id"`

	BaseURL     string        `yaml:"base_url" json:"base_url"`
	Version     string        `yaml:"version" json:"version"`
	TitlePrefix string        `yaml:"title_prefix" json:"title_prefix"`
	Properties  PropertyNames `yaml:"properties" json:"properties"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the status server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	Notion NotionConfig `yaml:"notion" json:"notion"`

	// ICSPath is the feed location: an http(s) URL or a local file path.
	ICSPath string `yaml:"ics_path" json:"-"`

	// Timezone is the IANA zone used for floating ICS times.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WindowDays is the trailing recency window. 0 keeps only events that
	// have not ended yet; negative values are rejected by Validate.
	WindowDays int `yaml:"window_days" json:"window_days"`

	// ExpandRecurring turns each RRULE occurrence within the window into its
	// own event. HorizonDays bounds how far past now occurrences are produced.
	ExpandRecurring bool `yaml:"expand_recurring" json:"expand_recurring"`
	HorizonDays     int  `yaml:"horizon_days" json:"horizon_days"`

	// OnUnknown decides what happens when the duplicate lookup fails:
	//   - "skip" (default): do not create
	//   - "create": create anyway, risking a duplicate
	OnUnknown string `yaml:"on_unknown" json:"on_unknown"`

	DryRun bool `yaml:"dry_run" json:"dry_run"`

	// RefreshCron, when set, keeps the process running and imports on this
	// cron schedule (e.g. "*/15 * * * *"). Empty means a single pass.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// Listen enables the status server in scheduled mode.
	Listen string `yaml:"listen" json:"listen"`

	// BasicAuth, if non-nil, protects every status endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"-"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Notion: NotionConfig{
			BaseURL:     DefaultNotionBaseURL,
			Version:     DefaultNotionVersion,
			TitlePrefix: DefaultTitlePrefix,
			Properties:  defaultProperties(),
		},
		Timezone:       DefaultTimezone,
		WindowDays:     DefaultWindowDays,
		HorizonDays:    DefaultHorizonDays,
		OnUnknown:      OnUnknownSkip,
		RequestTimeout: 30 * time.Second,
		LogLevel:       "info",
	}
}

func defaultProperties() PropertyNames {
	return PropertyNames{
		Title:    "Nombre",
		Created:  "Fecha de creación",
		Due:      "Fecha límite",
		Assignee: "Responsable",
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Notion.BaseURL == "" {
		c.Notion.BaseURL = DefaultNotionBaseURL
	}
	c.Notion.BaseURL = strings.TrimRight(c.Notion.BaseURL, "/")
	if c.Notion.Version == "" {
		c.Notion.Version = DefaultNotionVersion
	}
	// An explicitly empty prefix cannot be told apart from a missing one in
	// YAML; "none" opts out.
	switch c.Notion.TitlePrefix {
	case "":
		c.Notion.TitlePrefix = DefaultTitlePrefix
	case "none":
		c.Notion.TitlePrefix = ""
	}
	def := defaultProperties()
	if c.Notion.Properties.Title == "" {
		c.Notion.Properties.Title = def.Title
	}
	if c.Notion.Properties.Created == "" {
		c.Notion.Properties.Created = def.Created
	}
	if c.Notion.Properties.Due == "" {
		c.Notion.Properties.Due = def.Due
	}
	if c.Notion.Properties.Assignee == "" {
		c.Notion.Properties.Assignee = def.Assignee
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	c.OnUnknown = strings.ToLower(strings.TrimSpace(c.OnUnknown))
	if c.OnUnknown == "" {
		c.OnUnknown = OnUnknownSkip
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// ApplyEnv overrides file values with environment variables, after loading
// envFile (if non-empty) into the process environment. Variables already set
// in the environment win over the file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	setString(&c.Notion.Token, EnvToken)
	setString(&c.Notion.DatabaseID, EnvDatabaseID)
	setString(&c.Notion.AssigneeID, EnvAssigneeID)
	setString(&c.ICSPath, EnvICSPath)
	setString(&c.OnUnknown, EnvOnUnknown)
	setString(&c.LogLevel, EnvLogLevel)

	if v, ok := lookupEnv(EnvWindowDays); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWindowDays, err)
		}
		c.WindowDays = n
	}

	c.Normalize()
	return nil
}

// Validate checks that every input needed before the first network call is
// present and well-formed. DatabaseID is rewritten to its dashed form.
func (c *Config) Validate() error {
	var errs []error

	if c.Notion.Token == "" {
		errs = append(errs, fmt.Errorf("notion token is required (%s)", EnvToken))
	}
	if c.ICSPath == "" {
		errs = append(errs, fmt.Errorf("ics path is required (%s)", EnvICSPath))
	}

	if c.Notion.DatabaseID == "" {
		errs = append(errs, fmt.Errorf("notion database id is required (%s)", EnvDatabaseID))
	} else if id, err := FormatDatabaseID(c.Notion.DatabaseID); err != nil {
		errs = append(errs, err)
	} else {
		c.Notion.DatabaseID = id
	}

	if c.Notion.AssigneeID == "" {
		errs = append(errs, fmt.Errorf("notion assignee id is required (%s)", EnvAssigneeID))
	} else if _, err := uuid.Parse(c.Notion.AssigneeID); err != nil {
		errs = append(errs, fmt.Errorf("invalid assignee id %q: %w", c.Notion.AssigneeID, err))
	}

	if c.WindowDays < 0 {
		errs = append(errs, fmt.Errorf("window days must be >= 0, got %d (%s)", c.WindowDays, EnvWindowDays))
	}

	switch c.OnUnknown {
	case OnUnknownSkip, OnUnknownCreate:
	default:
		errs = append(errs, fmt.Errorf("on_unknown must be %q or %q, got %q", OnUnknownSkip, OnUnknownCreate, c.OnUnknown))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err))
	}

	if c.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			errs = append(errs, fmt.Errorf("invalid refresh schedule %q: %w", c.RefreshCron, err))
		}
	}

	return errors.Join(errs...)
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FormatDatabaseID turns a Notion database identifier into dashed UUID form.
// Both "0123456789abcdef0123456789abcdef" and the dashed form are accepted.
func FormatDatabaseID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid database id %q: %w", raw, err)
	}
	return id.String(), nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If path is empty, defaults are returned (env-only setup).
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	// Keys missing from the file keep their defaults; window_days: 0 is a
	// real value and must not be mistaken for a missing one.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions, since it may hold the token.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".notioncal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

func setString(dst *string, key string) {
	if v, ok := lookupEnv(key); ok {
		*dst = v
	}
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
