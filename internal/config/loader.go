package config

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	mediaPrefixRE = regexp.MustCompile(`^[A-Za-z0-9_-]{1,10}$`)
	durationType  = reflect.TypeOf(time.Duration(0))
)

// lookupFunc reports the value of an environment variable and whether it
// is set. os.LookupEnv in production, a map in tests.
type lookupFunc func(name string) (string, bool)

// Load reads configuration from environment variables, applies defaults
// and validates the result.
func Load() (*Config, error) {
	return loadFrom(os.LookupEnv)
}

func loadFrom(lookup lookupFunc) (*Config, error) {
	cfg := &Config{}
	if err := fill(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// fill sets every field tagged `env` from the environment. Nested section
// structs are walked. An empty variable counts as unset, so `default` and
// then `required` apply to it.
func fill(v reflect.Value, lookup lookupFunc) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			if err := fill(fv, lookup); err != nil {
				return err
			}
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}
		raw := firstSet(lookup, name, field.Tag.Get("envAlt"))
		if raw == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", name)
			}
			raw = field.Tag.Get("default")
		}
		if raw == "" {
			continue
		}
		if err := parseInto(fv, raw); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, raw, err)
		}
	}
	return nil
}

// firstSet returns the first non-empty value among the named variables.
func firstSet(lookup lookupFunc, names ...string) string {
	for _, name := range names {
		if name == "" {
			continue
		}
		if v, ok := lookup(name); ok && v != "" {
			return v
		}
	}
	return ""
}

func parseInto(fv reflect.Value, raw string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Slice:
		// Only []string is tagged: comma separated, blanks dropped.
		var items []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		fv.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field type %s", fv.Type())
	}
	return nil
}

// problems collects validation failures so they are reported together.
type problems []string

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		*p = append(*p, fmt.Sprintf(format, args...))
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var p problems

	p.check(c.Database.URL != "", "DATABASE_URL is required")
	p.check(c.Database.MaxConns > 0, "DB_MAX_CONNS must be positive")
	p.check(c.Database.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
	p.check(c.Database.MaxConns >= c.Database.MinConns,
		"DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)

	p.check(c.Server.Port > 0 && c.Server.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	p.check(c.Server.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.check(c.Server.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")

	p.check(c.Import.MaxFileSize > 0, "IMPORT_MAX_FILE_SIZE must be positive")
	p.check(c.Import.MaxConcurrent > 0, "IMPORT_MAX_CONCURRENT must be positive")
	p.check(c.Import.MaxWaitTime > 0, "IMPORT_MAX_WAIT_TIME must be positive")
	p.check(c.Import.Timeout > 0, "IMPORT_TIMEOUT must be positive")
	p.check(c.Import.ProgressInterval > 0, "IMPORT_PROGRESS_INTERVAL must be positive")
	p.check(c.Import.ChangeTimeout > 0, "IMPORT_CHANGE_TIMEOUT must be positive")

	p.check(mediaPrefixRE.MatchString(c.Tree.MediaIDPrefix),
		"TREE_MEDIA_ID_PREFIX (%q) must be 1-10 letters, digits, '_' or '-'", c.Tree.MediaIDPrefix)

	p.check(!c.Rate.Enabled || c.Rate.RequestsPerMinute > 0,
		"RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")

	p.check(c.Archive.HotRetentionDays > 0, "ARCHIVE_HOT_RETENTION_DAYS must be positive")
	p.check(c.Archive.ArchiveRetentionYears > 0, "ARCHIVE_RETENTION_YEARS must be positive")
	p.check(c.Archive.BatchSize > 0, "ARCHIVE_BATCH_SIZE must be positive")
	p.check(c.Archive.CheckInterval > 0, "ARCHIVE_CHECK_INTERVAL must be positive")

	p.check(!c.Security.RequireAPIKey || len(c.Security.APIKeys) > 0,
		"REQUIRE_API_KEY is true but API_KEYS is empty")

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		p.check(false, "LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		p.check(false, "LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}

// String summarizes the configuration for the startup log. The database
// URL and API keys are never printed.
func (c *Config) String() string {
	return fmt.Sprintf("server=%s db=[MASKED] max_conns=%d import={max_size=%d concurrent=%d timeout=%s} "+
		"tree={uids=%t keep_media=%t media_prefix=%q} rate={enabled=%t per_minute=%d imports=%d} "+
		"api_keys=%d log=%s/%s",
		c.Server.Addr(), c.Database.MaxConns,
		c.Import.MaxFileSize, c.Import.MaxConcurrent, c.Import.Timeout,
		c.Tree.GenerateUIDs, c.Tree.KeepMedia, c.Tree.MediaIDPrefix,
		c.Rate.Enabled, c.Rate.RequestsPerMinute, c.Rate.ImportLimit,
		len(c.Security.APIKeys), c.Logging.Level, c.Logging.Format)
}
