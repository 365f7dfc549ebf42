package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/backy/backend/internal/config"
	"github.com/backy/backend/internal/handler"
	"github.com/backy/backend/internal/moderation"
	"github.com/backy/backend/internal/repository"
	"github.com/backy/backend/internal/service"
	"github.com/backy/backend/pkg/auth"
	"github.com/backy/backend/pkg/webhook"
)

// signaturesPerKey bounds how many timestamps are kept per duplicate signature.
const signaturesPerKey = 8

// server holds the wired dependencies of one process.
type server struct {
	cfg *config.Config

	db          repository.DB
	sites       repository.SiteRepository
	forms       repository.FormRepository
	submissions repository.SubmissionRepository
	comments    repository.CommentRepository
	contacts    repository.ContactRepository
	audit       repository.AuditRepository

	blocklist  *moderation.Blocklist
	classifier *moderation.Classifier
	memWindows *moderation.MemWindowStore // nil when windows live in Redis

	tracker        *service.AuditTracker
	formService    service.FormService
	contactService service.ContactService
	commentService service.CommentService

	throttle *handler.Throttle
	ips      *handler.IPHasher

	storage         string
	moderationStore string
	closers         []func()
}

func newServer(ctx context.Context, cfg *config.Config) (*server, error) {
	s := &server{cfg: cfg}
	if err := s.openRepositories(ctx); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.openModeration(ctx); err != nil {
		s.Close()
		return nil, err
	}

	s.tracker = service.NewAuditTracker(s.audit, webhook.NewClient(cfg.WebhookTimeout))
	s.contactService = service.NewContactService(s.contacts, s.forms, s.tracker)
	s.formService = service.NewFormService(s.forms, s.submissions, s.classifier, s.contactService, s.tracker)
	s.commentService = service.NewCommentService(s.sites, s.comments, s.classifier, s.blocklist, s.tracker)

	s.throttle = handler.NewThrottle(cfg.ThrottlePerMin, cfg.TrustedProxies)
	s.ips = handler.NewIPHasher(cfg.IPHashSalt, cfg.TrustedProxies)
	return s, nil
}

func (s *server) openRepositories(ctx context.Context) error {
	if s.cfg.DatabaseURL == "" {
		store := repository.NewMemoryStore()
		if s.cfg.SeedFile != "" {
			if err := store.LoadSeedFile(s.cfg.SeedFile); err != nil {
				return fmt.Errorf("load seed: %w", err)
			}
		}
		s.db = store
		s.sites, s.forms = store.Sites(), store.Forms()
		s.submissions, s.comments = store.Submissions(), store.Comments()
		s.contacts, s.audit = store.Contacts(), store.Audit()
		s.storage = "memory"
		return nil
	}

	pool, err := repository.NewPool(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.closers = append(s.closers, pool.Close)
	s.db = pool
	s.sites = repository.NewPgSiteRepository(pool)
	s.forms = repository.NewPgFormRepository(pool)
	s.submissions = repository.NewPgSubmissionRepository(pool)
	s.comments = repository.NewPgCommentRepository(pool)
	s.contacts = repository.NewPgContactRepository(pool)
	s.audit = repository.NewPgAuditRepository(pool)
	s.storage = "postgres"
	return nil
}

func (s *server) openModeration(ctx context.Context) error {
	var (
		windows    moderation.WindowStore
		signatures moderation.SignatureStore
		entries    moderation.BlocklistStore
	)
	if s.cfg.RedisURL != "" {
		rdb, err := moderation.NewRedisClient(ctx, s.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.closers = append(s.closers, func() { closeRedis(rdb) })
		windows = &moderation.RedisWindowStore{Client: rdb}
		signatures = &moderation.RedisSignatureStore{Client: rdb, Size: signaturesPerKey}
		entries = &moderation.RedisBlocklistStore{Client: rdb}
		s.moderationStore = "redis"
	} else {
		s.memWindows = moderation.NewMemWindowStore()
		windows = s.memWindows
		horizon := max(s.cfg.FormDuplicateHorizon, s.cfg.CommentDuplicateHorizon)
		signatures = moderation.NewMemSignatureStore(s.cfg.SignatureCacheSize, horizon, signaturesPerKey)
		entries = moderation.NewMemBlocklistStore()
		s.moderationStore = "memory"
	}

	s.blocklist = moderation.NewBlocklist(entries)
	s.classifier = moderation.NewClassifier(s.blocklist,
		moderation.Policy{
			Limiter:    moderation.NewRateLimiter(windows, s.cfg.FormRateWindow, s.cfg.FormRateLimit),
			Duplicates: moderation.NewDuplicateDetector(signatures, s.cfg.FormDuplicateHorizon),
		},
		moderation.Policy{
			Limiter:    moderation.NewRateLimiter(windows, s.cfg.CommentRateWindow, s.cfg.CommentRateLimit),
			Duplicates: moderation.NewDuplicateDetector(signatures, s.cfg.CommentDuplicateHorizon),
		},
		moderation.Options{
			MinFillTime:      s.cfg.MinFillTime,
			MaxContentLength: s.cfg.MaxCommentLength,
		},
	)
	return nil
}

func closeRedis(rdb *redis.Client) {
	if err := rdb.Close(); err != nil {
		slog.Warn("closing redis", "error", err)
	}
}

// startJanitors prunes in-process windows until ctx is done.
func (s *server) startJanitors(ctx context.Context) {
	if s.memWindows != nil {
		go s.memWindows.RunJanitor(ctx, time.Minute)
	}
}

// Close releases the pool and the Redis client in reverse order of opening.
func (s *server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func (s *server) routes() http.Handler {
	cfg := s.cfg
	h := handler.New(s.db, cfg.FrontendURL)
	formHandler := handler.NewFormHandler(s.formService, s.ips, cfg.InternalToken)
	commentHandler := handler.NewCommentHandler(s.commentService, s.ips, cfg.InternalToken)
	contactHandler := handler.NewContactHandler(s.contactService)
	auditHandler := handler.NewAuditHandler(s.tracker)
	blocklistHandler := handler.NewBlocklistHandler(s.blocklist, s.ips)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// 公開の受付 API（IP 単位のスロットル付き）
	public := s.throttle.Middleware
	mux.Handle("POST /api/sites/{siteId}/forms/{formId}/submissions", public(http.HandlerFunc(formHandler.Submit)))
	mux.Handle("POST /api/sites/{siteId}/comments", public(http.HandlerFunc(commentHandler.Submit)))
	mux.HandleFunc("GET /api/sites/{siteId}/comments", commentHandler.ListPublic)
	mux.Handle("POST /api/sites/{siteId}/comments/{id}/report", public(http.HandlerFunc(commentHandler.Report)))

	// Admin routes (host-only — handler enforces IsHostFromContext)
	hostEmails := cfg.HostEmails
	if !cfg.AuthRequired && len(hostEmails) == 0 {
		hostEmails = []string{auth.DevUserID}
	}
	withHost := auth.HostMiddleware(hostEmails, auth.SessionEmail)
	wrapAuth := func(next http.HandlerFunc) http.Handler {
		if cfg.AuthRequired {
			return auth.RequireAuth(auth.SessionSecretBytes(cfg.SessionSecret))(withHost(next))
		}
		return auth.DevAuth(withHost(next))
	}
	mux.Handle("GET /api/admin/sites/{siteId}/submissions", wrapAuth(formHandler.AdminList))
	mux.Handle("PATCH /api/admin/sites/{siteId}/submissions/{id}/status", wrapAuth(formHandler.UpdateStatus))
	mux.Handle("POST /api/admin/sites/{siteId}/submissions/bulk-status", wrapAuth(formHandler.BulkUpdateStatus))
	mux.Handle("GET /api/admin/sites/{siteId}/comments", wrapAuth(commentHandler.AdminList))
	mux.Handle("PATCH /api/admin/sites/{siteId}/comments/{id}/status", wrapAuth(commentHandler.UpdateStatus))
	mux.Handle("POST /api/admin/sites/{siteId}/comments/bulk-status", wrapAuth(commentHandler.BulkUpdateStatus))
	mux.Handle("GET /api/admin/sites/{siteId}/contacts", wrapAuth(contactHandler.AdminList))
	mux.Handle("PATCH /api/admin/sites/{siteId}/contacts/{id}/status", wrapAuth(contactHandler.UpdateStatus))
	mux.Handle("GET /api/admin/sites/{siteId}/audit-events", wrapAuth(auditHandler.List))
	mux.Handle("GET /api/admin/sites/{siteId}/blocklist", wrapAuth(blocklistHandler.List))
	mux.Handle("POST /api/admin/sites/{siteId}/blocklist", wrapAuth(blocklistHandler.Block))

	return handler.RequestLogger(handler.SecurityHeaders(h.CORS(mux)))
}
