package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the typed, load-time-validated view of the service environment.
// Unknown or malformed values fail the load rather than defaulting silently.
type Config struct {
	DatabaseURL    string
	ListenAddr     string
	AllowedOrigins []string
	ServiceToken   string

	// XP settings
	LazyCreateProgress bool

	// Leaderboard settings
	LeaderboardRefreshInterval time.Duration

	// Audit archive settings
	AuditArchive ArchiveConfig
}

// ArchiveConfig controls the compliance export of adjustment logs to R2.
type ArchiveConfig struct {
	Enabled      bool
	Interval     time.Duration
	ObjectPrefix string
	PageSize     int

	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// Load reads .env (if present) and the process environment into a validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg := &Config{
		ListenAddr:                 ":5300",
		LazyCreateProgress:         true,
		LeaderboardRefreshInterval: 30 * time.Second,
		AuditArchive: ArchiveConfig{
			Interval:     5 * time.Minute,
			ObjectPrefix: "audit",
			PageSize:     500,
		},
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	cfg.ServiceToken = os.Getenv("PROGRESSION_SERVICE_TOKEN")
	if cfg.ServiceToken == "" {
		return nil, fmt.Errorf("PROGRESSION_SERVICE_TOKEN environment variable not set")
	}

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}

	origins := os.Getenv("ALLOWED_ORIGINS")
	if origins == "" {
		log.Println("⚠️  ALLOWED_ORIGINS not set, using default: http://localhost:3000")
		origins = "http://localhost:3000"
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	if v := os.Getenv("LAZY_CREATE_PROGRESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LAZY_CREATE_PROGRESS %q: %w", v, err)
		}
		cfg.LazyCreateProgress = b
	}

	if v := os.Getenv("LEADERBOARD_REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid LEADERBOARD_REFRESH_INTERVAL %q", v)
		}
		cfg.LeaderboardRefreshInterval = d
	}

	if v := os.Getenv("AUDIT_ARCHIVE_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid AUDIT_ARCHIVE_ENABLED %q: %w", v, err)
		}
		cfg.AuditArchive.Enabled = b
	}

	if cfg.AuditArchive.Enabled {
		cfg.AuditArchive.AccountID = os.Getenv("CLOUDFLARE_ACCOUNT_ID")
		cfg.AuditArchive.AccessKeyID = os.Getenv("R2_ACCESS_KEY_ID")
		cfg.AuditArchive.AccessKeySecret = os.Getenv("R2_ACCESS_KEY_SECRET")
		cfg.AuditArchive.Bucket = os.Getenv("R2_BUCKET_NAME")
		cfg.AuditArchive.CDNBaseURL = os.Getenv("CDN_BASE_URL")
		if cfg.AuditArchive.AccountID == "" || cfg.AuditArchive.AccessKeyID == "" ||
			cfg.AuditArchive.AccessKeySecret == "" || cfg.AuditArchive.Bucket == "" {
			return nil, fmt.Errorf("audit archive enabled but R2 credentials are incomplete")
		}
		if v := os.Getenv("AUDIT_ARCHIVE_INTERVAL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("invalid AUDIT_ARCHIVE_INTERVAL %q", v)
			}
			cfg.AuditArchive.Interval = d
		}
		if v := os.Getenv("AUDIT_ARCHIVE_PAGE_SIZE"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid AUDIT_ARCHIVE_PAGE_SIZE %q", v)
			}
			cfg.AuditArchive.PageSize = n
		}
		if v := os.Getenv("AUDIT_ARCHIVE_PREFIX"); v != "" {
			cfg.AuditArchive.ObjectPrefix = v
		}
	}

	return cfg, nil
}
