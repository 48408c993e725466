// Package media turns listing image references into URLs clients can fetch.
// References are either absolute URLs, passed through after validation, or
// object keys in an S3-compatible bucket, served from a public CDN base URL
// or through short-lived presigned GET URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/onnwee/autolist/internal/validate"
)

// Resolution modes.
const (
	ModePublic  = "public"
	ModePresign = "presign"
)

// ErrInvalidKey is returned for object keys that are empty or escape their prefix.
var ErrInvalidKey = errors.New("invalid object key")

// Config holds configuration for the media resolver.
// Either PublicBaseURL or the bucket credentials must be set.
type Config struct {
	PublicBaseURL    string
	BucketName       string
	AccessKeyID      string
	SecretAccessKey  string
	Endpoint         string
	URLExpiryMinutes int // Default: 60 minutes
}

// Resolver maps image references to fetchable URLs. A nil *Resolver passes
// references through unchanged.
type Resolver struct {
	publicBase    string
	presignClient *s3.PresignClient
	bucketName    string
	urlExpiry     time.Duration
	logger        *slog.Logger
}

// NewResolver creates a resolver. A public base URL takes precedence over
// presigning.
func NewResolver(cfg Config, logger *slog.Logger) (*Resolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{logger: logger.With("component", "media")}

	if cfg.PublicBaseURL != "" {
		r.publicBase = strings.TrimRight(cfg.PublicBaseURL, "/")
		return r, nil
	}

	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.URLExpiryMinutes <= 0 {
		cfg.URLExpiryMinutes = 60
	}

	// S3-compatible storage (R2, MinIO) uses path-style addressing
	s3Client := s3.New(s3.Options{
		Region: "auto",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	r.presignClient = s3.NewPresignClient(s3Client)
	r.bucketName = cfg.BucketName
	r.urlExpiry = time.Duration(cfg.URLExpiryMinutes) * time.Minute
	return r, nil
}

// Mode reports how object keys are resolved.
func (r *Resolver) Mode() string {
	if r.presignClient != nil {
		return ModePresign
	}
	return ModePublic
}

// Resolve returns a fetchable URL for one image reference.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if strings.Contains(ref, "://") {
		return validate.ImageURL(ref)
	}

	key, err := CleanKey(ref)
	if err != nil {
		return "", err
	}

	if r.presignClient == nil {
		return r.publicBase + "/" + escapeKey(key), nil
	}

	req, err := r.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucketName),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = r.urlExpiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign request: %w", err)
	}
	return req.URL, nil
}

// ResolveAll resolves refs in order, dropping any that fail.
func (r *Resolver) ResolveAll(ctx context.Context, refs []string) []string {
	out := make([]string, 0, len(refs))
	if r == nil {
		return append(out, refs...)
	}
	for _, ref := range refs {
		u, err := r.Resolve(ctx, ref)
		if err != nil {
			r.logger.WarnContext(ctx, "dropping unresolvable image reference",
				"ref", ref,
				"error", err)
			continue
		}
		out = append(out, u)
	}
	return out
}

// CleanKey normalizes an object key and rejects keys that are empty, contain
// parent segments, or use characters outside [A-Za-z0-9-_./].
func CleanKey(key string) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	for _, r := range key {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' || r == '/' {
			continue
		}
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return key, nil
}

func escapeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
