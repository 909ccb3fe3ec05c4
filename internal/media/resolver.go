// Package media builds URLs for therapist photos and videos stored in S3.
package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/solhealth/match-booking/internal/solhealth"
	"github.com/solhealth/match-booking/pkg/logging"
)

// Kind is a therapist media slot.
type Kind string

const (
	Image        Kind = "image"
	WelcomeVideo Kind = "welcome_video"
	IntroVideo   Kind = "intro_video"
)

// PresignAPI is the subset of s3.PresignClient used by Resolver.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config configures a Resolver.
type Config struct {
	Bucket    string
	BucketURL string
	// CloudFrontURL replaces BucketURL when set.
	CloudFrontURL string
	Presigner     PresignAPI
	PresignTTL    time.Duration
}

// Resolver turns a therapist email into media URLs.
type Resolver struct {
	bucket     string
	baseURL    string
	presigner  PresignAPI
	presignTTL time.Duration
	logger     *logging.Logger
}

// NewResolver creates a resolver. A nil Presigner yields plain public URLs.
func NewResolver(cfg Config, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Default()
	}
	base := strings.TrimSpace(cfg.CloudFrontURL)
	if base == "" {
		base = strings.TrimSpace(cfg.BucketURL)
	}
	if base == "" && cfg.Bucket != "" {
		base = fmt.Sprintf("https://%s.s3.amazonaws.com", cfg.Bucket)
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	return &Resolver{
		bucket:     cfg.Bucket,
		baseURL:    strings.TrimRight(base, "/"),
		presigner:  cfg.Presigner,
		presignTTL: cfg.PresignTTL,
		logger:     logger,
	}
}

// ObjectKey returns where a media kind lives for a therapist email, or "".
func ObjectKey(email string, kind Kind) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	switch kind {
	case Image:
		return "images/" + email
	case WelcomeVideo:
		if local, _, ok := strings.Cut(email, "@"); ok && strings.Contains(email, "@binghamton.edu") {
			return "videos/" + local + "@binghamton.edu_welcome"
		}
		return "videos/" + email + "_welcome"
	case IntroVideo:
		return "videos/" + email + "_intro"
	default:
		return ""
	}
}

// IsPresigned reports whether the backend already supplied a usable URL.
func IsPresigned(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// URL builds the media URL for email. Presigning failures fall back to the
// public URL.
func (r *Resolver) URL(ctx context.Context, email string, kind Kind) string {
	key := ObjectKey(email, kind)
	if key == "" {
		return ""
	}
	if r.presigner != nil && r.bucket != "" {
		req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(r.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(r.presignTTL))
		if err == nil && req != nil && req.URL != "" {
			return req.URL
		}
		r.logger.Warn("media presign failed, using public url", "key", key, "error", err)
	}
	if r.baseURL == "" {
		return ""
	}
	return r.baseURL + "/" + key
}

// Resolve keeps a provided http(s) URL and otherwise builds one from email.
func (r *Resolver) Resolve(ctx context.Context, provided, email string, kind Kind) string {
	if IsPresigned(provided) {
		return provided
	}
	return r.URL(ctx, email, kind)
}

// Apply fills the therapist's media links. Profile images and videos are
// keyed by the general email, not the calendar one.
func (r *Resolver) Apply(ctx context.Context, t *solhealth.Therapist) {
	if r == nil || t == nil {
		return
	}
	t.ImageLink = r.Resolve(ctx, t.ImageLink, t.Email, Image)
	t.WelcomeVideoLink = r.Resolve(ctx, t.WelcomeVideoLink, t.Email, WelcomeVideo)
	t.GreetingsVideoLink = r.Resolve(ctx, t.GreetingsVideoLink, t.Email, IntroVideo)
}

// ApplyAll fills media links for every match in place.
func (r *Resolver) ApplyAll(ctx context.Context, result *solhealth.MatchResult) {
	if r == nil || result == nil {
		return
	}
	for i := range result.Therapists {
		r.Apply(ctx, &result.Therapists[i].Therapist)
	}
}
