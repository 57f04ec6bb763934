package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"wg-lifecycle/wg-server/internal/auth"
)

const (
	DefaultPath        = "/etc/wg-server/config.yaml"
	DefaultStateDir    = "/etc/wireguard"
	DefaultInterface   = "wg0"
	DefaultJournalPath = "/var/lib/wg-server/journal.db"

	envPrefix = "WG_LIFECYCLE_"
)

type Config struct {
	StateDir  string          `yaml:"state_dir"`
	Interface string          `yaml:"interface"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	API       APIConfig       `yaml:"api"`
	Journal   JournalConfig   `yaml:"journal"`
	Log       LogConfig       `yaml:"log"`
}

type ReconcileConfig struct {
	Interval           time.Duration `yaml:"interval"`
	PeerTimeout        time.Duration `yaml:"peer_timeout"`
	HandshakeThreshold time.Duration `yaml:"handshake_threshold"`
	Workers            int           `yaml:"workers"`
}

type APIConfig struct {
	// Listen is empty when the admin API is disabled.
	Listen      string `yaml:"listen"`
	TokenSecret string `yaml:"token_secret"`
	// AdminUser and AdminPasswordHash enable POST /api/login. The hash is
	// bcrypt, as printed by `wg-server hash-password`.
	AdminUser         string `yaml:"admin_user"`
	AdminPasswordHash string `yaml:"admin_password_hash"`
}

type JournalConfig struct {
	// Path is empty when the pass journal is disabled.
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		StateDir:  DefaultStateDir,
		Interface: DefaultInterface,
		Reconcile: ReconcileConfig{
			Interval:           30 * time.Second,
			PeerTimeout:        5 * time.Second,
			HandshakeThreshold: 130 * time.Second,
			Workers:            1,
		},
		Journal: JournalConfig{
			Path:      DefaultJournalPath,
			Retention: 7 * 24 * time.Hour,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults and then applies
// WG_LIFECYCLE_* environment overrides. A missing file is only an error
// when the path was given explicitly.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(envPrefix + key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = d
		return nil
	}

	str("STATE_DIR", &c.StateDir)
	str("INTERFACE", &c.Interface)
	str("API_LISTEN", &c.API.Listen)
	str("API_TOKEN_SECRET", &c.API.TokenSecret)
	str("ADMIN_USER", &c.API.AdminUser)
	str("ADMIN_PASSWORD_HASH", &c.API.AdminPasswordHash)
	str("JOURNAL_PATH", &c.Journal.Path)
	str("LOG_LEVEL", &c.Log.Level)

	if err := dur("INTERVAL", &c.Reconcile.Interval); err != nil {
		return err
	}
	if err := dur("PEER_TIMEOUT", &c.Reconcile.PeerTimeout); err != nil {
		return err
	}
	if err := dur("HANDSHAKE_THRESHOLD", &c.Reconcile.HandshakeThreshold); err != nil {
		return err
	}
	if err := dur("JOURNAL_RETENTION", &c.Journal.Retention); err != nil {
		return err
	}
	if v, ok := lookup(envPrefix + "WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWORKERS: %w", envPrefix, err)
		}
		c.Reconcile.Workers = n
	}
	return nil
}

func (c Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.StateDir) == "" {
		errs = append(errs, "state_dir is required")
	}
	iface := strings.TrimSpace(c.Interface)
	if iface == "" {
		errs = append(errs, "interface is required")
	} else if len(iface) > 15 || strings.ContainsAny(iface, "/ ") {
		errs = append(errs, "interface must be a valid link name")
	}
	if c.Reconcile.Interval <= 0 {
		errs = append(errs, "reconcile.interval must be positive")
	}
	if c.Reconcile.PeerTimeout <= 0 {
		errs = append(errs, "reconcile.peer_timeout must be positive")
	}
	if c.Reconcile.HandshakeThreshold <= 0 {
		errs = append(errs, "reconcile.handshake_threshold must be positive")
	}
	if c.Reconcile.Workers < 1 {
		errs = append(errs, "reconcile.workers must be at least 1")
	}
	if c.API.Listen != "" {
		if _, _, err := net.SplitHostPort(c.API.Listen); err != nil {
			errs = append(errs, "api.listen must be host:port")
		}
		if len(c.API.TokenSecret) < 16 {
			errs = append(errs, "api.token_secret must be at least 16 characters when api.listen is set")
		}
	}
	if c.API.AdminPasswordHash != "" {
		if c.API.AdminUser == "" {
			errs = append(errs, "api.admin_user is required when api.admin_password_hash is set")
		}
		if !auth.ValidHash(c.API.AdminPasswordHash) {
			errs = append(errs, "api.admin_password_hash must be a bcrypt hash")
		}
	}
	if c.Journal.Retention < 0 {
		errs = append(errs, "journal.retention must not be negative")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, "log.level must be a logrus level")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}
