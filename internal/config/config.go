// Package config holds the server settings read from flags and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	cli "github.com/urfave/cli/v2"
)

// Config is everything cmd/server needs to wire the intake pipeline.
type Config struct {
	Addr          string
	DatabaseURL   string // empty: in-memory repositories
	RedisURL      string // empty: in-process moderation stores
	SeedFile      string // sites and forms loaded into the in-memory store
	FrontendURL   string
	SessionSecret string
	AuthRequired  bool
	HostEmails    []string
	LogLevel      string

	IPHashSalt     string
	InternalToken  string
	TrustedProxies int
	ThrottlePerMin int

	WebhookTimeout time.Duration

	FormRateWindow          time.Duration
	FormRateLimit           int
	CommentRateWindow       time.Duration
	CommentRateLimit        int
	FormDuplicateHorizon    time.Duration
	CommentDuplicateHorizon time.Duration
	MinFillTime             time.Duration
	MaxCommentLength        int
	SignatureCacheSize      int
}

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		Addr:          ":8080",
		FrontendURL:   "http://localhost:4321",
		SessionSecret: "dev-secret-change-in-production-32bytes",
		LogLevel:      "info",

		IPHashSalt:     "dev-ip-salt",
		TrustedProxies: 1,
		ThrottlePerMin: 60,

		WebhookTimeout: 10 * time.Second,

		FormRateWindow:          60 * time.Second,
		FormRateLimit:           8,
		CommentRateWindow:       60 * time.Second,
		CommentRateLimit:        6,
		FormDuplicateHorizon:    10 * time.Minute,
		CommentDuplicateHorizon: 10 * time.Minute,
		MinFillTime:             900 * time.Millisecond,
		MaxCommentLength:        5000,
		SignatureCacheSize:      10000,
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	atLeastOne := func(name string, n int) {
		if n < 1 {
			errs = append(errs, fmt.Errorf("%s must be at least 1", name))
		}
	}
	positive("form-rate-window", c.FormRateWindow)
	positive("comment-rate-window", c.CommentRateWindow)
	positive("form-duplicate-horizon", c.FormDuplicateHorizon)
	positive("comment-duplicate-horizon", c.CommentDuplicateHorizon)
	positive("webhook-timeout", c.WebhookTimeout)
	atLeastOne("form-rate-limit", c.FormRateLimit)
	atLeastOne("comment-rate-limit", c.CommentRateLimit)
	atLeastOne("max-comment-length", c.MaxCommentLength)
	atLeastOne("signature-cache-size", c.SignatureCacheSize)
	atLeastOne("throttle-per-minute", c.ThrottlePerMin)
	if c.MinFillTime < 0 {
		errs = append(errs, errors.New("min-fill-time must not be negative"))
	}
	if c.TrustedProxies < 0 {
		errs = append(errs, errors.New("trusted-proxies must not be negative"))
	}
	if c.AuthRequired && len(c.SessionSecret) < 32 {
		errs = append(errs, errors.New("session-secret must be at least 32 bytes when auth is required"))
	}
	return errors.Join(errs...)
}

// Flags are the server flags; each one can also be set from its env var.
func Flags() []cli.Flag {
	d := Default()
	return []cli.Flag{
		&cli.StringFlag{Name: "addr", Value: d.Addr, EnvVars: []string{"ADDR"}, Usage: "address the HTTP API listens on"},
		&cli.StringFlag{Name: "database-url", EnvVars: []string{"DATABASE_URL"}, Usage: "PostgreSQL URL; in-memory storage when empty"},
		&cli.StringFlag{Name: "redis-url", EnvVars: []string{"REDIS_URL"}, Usage: "Redis URL for shared rate, signature and blocklist stores"},
		&cli.StringFlag{Name: "seed-file", EnvVars: []string{"SEED_FILE"}, Usage: "JSON file of sites and forms for in-memory storage"},
		&cli.StringFlag{Name: "frontend-url", Value: d.FrontendURL, EnvVars: []string{"FRONTEND_URL"}},
		&cli.StringFlag{Name: "session-secret", Value: d.SessionSecret, EnvVars: []string{"SESSION_SECRET"}},
		&cli.BoolFlag{Name: "auth-required", EnvVars: []string{"AUTH_REQUIRED"}},
		&cli.StringFlag{Name: "host-emails", EnvVars: []string{"HOST_EMAILS"}, Usage: "comma separated emails allowed on admin routes"},
		&cli.StringFlag{Name: "log-level", Value: d.LogLevel, EnvVars: []string{"LOG_LEVEL"}},
		&cli.StringFlag{Name: "ip-hash-salt", Value: d.IPHashSalt, EnvVars: []string{"IP_HASH_SALT"}},
		&cli.StringFlag{Name: "internal-token", EnvVars: []string{"INTERNAL_TOKEN"}, Usage: "token that unlocks rateLimitBypass"},
		&cli.IntFlag{Name: "trusted-proxies", Value: d.TrustedProxies, EnvVars: []string{"TRUSTED_PROXIES"}},
		&cli.IntFlag{Name: "throttle-per-minute", Value: d.ThrottlePerMin, EnvVars: []string{"THROTTLE_PER_MINUTE"}},
		&cli.DurationFlag{Name: "webhook-timeout", Value: d.WebhookTimeout, EnvVars: []string{"WEBHOOK_TIMEOUT"}},
		&cli.DurationFlag{Name: "form-rate-window", Value: d.FormRateWindow, EnvVars: []string{"FORM_RATE_WINDOW"}},
		&cli.IntFlag{Name: "form-rate-limit", Value: d.FormRateLimit, EnvVars: []string{"FORM_RATE_LIMIT"}},
		&cli.DurationFlag{Name: "comment-rate-window", Value: d.CommentRateWindow, EnvVars: []string{"COMMENT_RATE_WINDOW"}},
		&cli.IntFlag{Name: "comment-rate-limit", Value: d.CommentRateLimit, EnvVars: []string{"COMMENT_RATE_LIMIT"}},
		&cli.DurationFlag{Name: "form-duplicate-horizon", Value: d.FormDuplicateHorizon, EnvVars: []string{"FORM_DUPLICATE_HORIZON"}},
		&cli.DurationFlag{Name: "comment-duplicate-horizon", Value: d.CommentDuplicateHorizon, EnvVars: []string{"COMMENT_DUPLICATE_HORIZON"}},
		&cli.DurationFlag{Name: "min-fill-time", Value: d.MinFillTime, EnvVars: []string{"MIN_FILL_TIME"}},
		&cli.IntFlag{Name: "max-comment-length", Value: d.MaxCommentLength, EnvVars: []string{"MAX_COMMENT_LENGTH"}},
		&cli.IntFlag{Name: "signature-cache-size", Value: d.SignatureCacheSize, EnvVars: []string{"SIGNATURE_CACHE_SIZE"}},
	}
}

// FromCLI reads the flags declared by Flags and validates the result.
func FromCLI(cctx *cli.Context) (*Config, error) {
	c := &Config{
		Addr:          cctx.String("addr"),
		DatabaseURL:   strings.TrimSpace(cctx.String("database-url")),
		RedisURL:      strings.TrimSpace(cctx.String("redis-url")),
		SeedFile:      cctx.String("seed-file"),
		FrontendURL:   cctx.String("frontend-url"),
		SessionSecret: cctx.String("session-secret"),
		AuthRequired:  cctx.Bool("auth-required"),
		HostEmails:    splitList(cctx.String("host-emails")),
		LogLevel:      cctx.String("log-level"),

		IPHashSalt:     cctx.String("ip-hash-salt"),
		InternalToken:  cctx.String("internal-token"),
		TrustedProxies: cctx.Int("trusted-proxies"),
		ThrottlePerMin: cctx.Int("throttle-per-minute"),

		WebhookTimeout: cctx.Duration("webhook-timeout"),

		FormRateWindow:          cctx.Duration("form-rate-window"),
		FormRateLimit:           cctx.Int("form-rate-limit"),
		CommentRateWindow:       cctx.Duration("comment-rate-window"),
		CommentRateLimit:        cctx.Int("comment-rate-limit"),
		FormDuplicateHorizon:    cctx.Duration("form-duplicate-horizon"),
		CommentDuplicateHorizon: cctx.Duration("comment-duplicate-horizon"),
		MinFillTime:             cctx.Duration("min-fill-time"),
		MaxCommentLength:        cctx.Int("max-comment-length"),
		SignatureCacheSize:      cctx.Int("signature-cache-size"),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
