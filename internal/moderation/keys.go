// Package moderation classifies untrusted form submissions and comments and
// holds the status transition rules that reviewers and reports drive.
package moderation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spaolacci/murmur3"
	"golang.org/x/text/unicode/norm"

	"github.com/backy/backend/internal/model"
)

// Key scopes rate windows and signatures to one identity on one target.
type Key struct {
	Kind     model.SubjectKind
	SiteID   string
	TargetID string
	Identity string
}

func (k Key) String() string {
	return string(k.Kind) + "/" + k.SiteID + "/" + k.TargetID + "/" + k.Identity
}

// IdentityOf picks the identity used for rate limiting: IP hash, then email.
func IdentityOf(ipHash, email string) string {
	if ipHash != "" {
		return "ip:" + ipHash
	}
	if e := NormalizeEmail(email); e != "" {
		return "email:" + e
	}
	return "anonymous"
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeContent folds compatibility characters, lower-cases and collapses
// whitespace so trivially altered repeats share a signature.
func NormalizeContent(content string) string {
	s := norm.NFKC.String(content)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// FormSignature concatenates key=value pairs in sorted key order.
func FormSignature(values map[string]any) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(signatureValue(values[k]))
	}
	return b.String()
}

// CommentSignature is the normalized content alone.
func CommentSignature(content string) string {
	return NormalizeContent(content)
}

func signatureValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

// HashOfString returns a fast, compact hash of a string (murmur3, hex).
func HashOfString(s string) string {
	return fmt.Sprintf("%016x", murmur3.Sum64([]byte(s)))
}
