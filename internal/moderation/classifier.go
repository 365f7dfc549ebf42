package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/backy/backend/internal/model"
)

const (
	DefaultMinFillTime      = 900 * time.Millisecond
	DefaultMaxContentLength = 5000
)

// Policy is the rate-limit and duplicate configuration of one subject kind.
type Policy struct {
	Limiter    *RateLimiter
	Duplicates *DuplicateDetector
}

// Options tunes the content and timing checks.
type Options struct {
	MinFillTime      time.Duration
	MaxContentLength int
}

// Input is everything the classifier looks at for one submission or comment.
type Input struct {
	Kind     model.SubjectKind
	SiteID   string
	TargetID string // form ID, or "page:<id>" / "post:<id>" for comments
	Email    string
	IPHash   string
	Values   map[string]any // forms
	Content  string         // comments

	Honeypot        string
	HoneypotEnabled bool
	StartedAt       *time.Time
	RateLimitBypass bool
	Mode            model.ModerationMode
}

// Result is the terminal classification. Flags only ever hold the flags of
// the branch that decided it.
type Result struct {
	Status  model.Status
	Flags   []string
	Message string
	Entry   *model.BlocklistEntry
}

// Spam reports whether the result should be treated as a spam outcome.
func (r Result) Spam() bool {
	return r.Status == model.StatusSpam || r.Status == model.StatusBlocked
}

// Classifier runs the ordered spam checks; the first match wins.
type Classifier struct {
	blocklist  *Blocklist
	policies   map[model.SubjectKind]Policy
	minFill    time.Duration
	maxContent int
	now        func() time.Time
}

// NewClassifier wires the blocklist and per-kind policies.
func NewClassifier(blocklist *Blocklist, forms, comments Policy, opts Options) *Classifier {
	if opts.MinFillTime <= 0 {
		opts.MinFillTime = DefaultMinFillTime
	}
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = DefaultMaxContentLength
	}
	return &Classifier{
		blocklist: blocklist,
		policies: map[model.SubjectKind]Policy{
			model.SubjectForm:    forms,
			model.SubjectComment: comments,
		},
		minFill:    opts.MinFillTime,
		maxContent: opts.MaxContentLength,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (c *Classifier) SetClock(now func() time.Time) {
	c.now = now
}

// Now returns the classifier's current time.
func (c *Classifier) Now() time.Time {
	return c.now()
}

// Classify evaluates in.
func (c *Classifier) Classify(ctx context.Context, in Input) (Result, error) {
	res, err := c.classify(ctx, in)
	if err != nil {
		return Result{}, err
	}
	flag := "none"
	if len(res.Flags) > 0 {
		flag = res.Flags[0]
	}
	classifications.WithLabelValues(string(in.Kind), string(res.Status), flag).Inc()
	return res, nil
}

func (c *Classifier) classify(ctx context.Context, in Input) (Result, error) {
	isComment := in.Kind == model.SubjectComment

	if isComment && strings.TrimSpace(in.Content) == "" {
		return reject("Comment content is required"), nil
	}

	entry, err := c.blocklist.IsBlocked(ctx, in.SiteID, in.Email, in.IPHash)
	if err != nil {
		return Result{}, fmt.Errorf("blocklist lookup: %w", err)
	}
	if entry != nil {
		return Result{
			Status:  model.StatusBlocked,
			Flags:   []string{model.FlagBlockedActor},
			Message: "Submissions from this sender are blocked",
			Entry:   entry,
		}, nil
	}

	if isComment && utf8.RuneCountInString(in.Content) > c.maxContent {
		return reject(fmt.Sprintf("Comment must be at most %d characters", c.maxContent)), nil
	}

	if in.RateLimitBypass {
		return Result{Status: in.Mode.DefaultStatus()}, nil
	}

	if in.HoneypotEnabled && strings.TrimSpace(in.Honeypot) != "" {
		return spam(model.FlagHoneypot), nil
	}

	now := c.now()
	if in.StartedAt != nil && now.Sub(*in.StartedAt) < c.minFill {
		return spam(model.FlagTiming), nil
	}

	policy := c.policies[in.Kind]
	key := Key{Kind: in.Kind, SiteID: in.SiteID, TargetID: in.TargetID, Identity: IdentityOf(in.IPHash, in.Email)}

	if policy.Limiter != nil {
		exceeded, err := policy.Limiter.Exceeded(ctx, key, now)
		if err != nil {
			return Result{}, fmt.Errorf("rate limiter: %w", err)
		}
		if exceeded {
			return spam(model.FlagRateLimit), nil
		}
	}

	if policy.Duplicates != nil {
		signature := FormSignature(in.Values)
		if isComment {
			signature = CommentSignature(in.Content)
		}
		dup, err := policy.Duplicates.Seen(ctx, key, signature, now)
		if err != nil {
			return Result{}, fmt.Errorf("duplicate detector: %w", err)
		}
		if dup {
			return spam(model.FlagDuplicate), nil
		}
	}

	return Result{Status: in.Mode.DefaultStatus()}, nil
}

func reject(msg string) Result {
	return Result{Status: model.StatusRejected, Flags: []string{model.FlagValidation}, Message: msg}
}

func spam(flag string) Result {
	return Result{Status: model.StatusSpam, Flags: []string{flag}, Message: "Submission flagged as spam"}
}
