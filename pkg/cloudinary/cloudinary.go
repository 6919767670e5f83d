package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotConfigured is returned by New when no credentials are set at all.
var ErrNotConfigured = errors.New("cloudinary is not configured")

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	Tags      []string
}

// Configured reports whether any credential has been supplied.
func (c Config) Configured() bool {
	return c.CloudName != "" || c.APIKey != "" || c.APISecret != ""
}

// ImageStore uploads battle entry images to Cloudinary.
type ImageStore struct {
	client *cloudinary.Cloudinary
	folder string
	tags   api.CldAPIArray
	tracer trace.Tracer
	logger zerolog.Logger
}

// New constructs an image store. It returns ErrNotConfigured when every credential is empty
// and a plain error when the credentials are only partially set.
func New(cfg Config, logger zerolog.Logger) (*ImageStore, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &ImageStore{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		tags:   api.CldAPIArray(cfg.Tags),
		tracer: otel.Tracer("github.com/noah-isme/designhub-api/pkg/cloudinary"),
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload stores the image and returns its secure URL.
func (s *ImageStore) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	publicID := buildPublicID(name, uuid.NewString())
	ctx, span := s.tracer.Start(ctx, "cloudinary.upload", trace.WithAttributes(
		attribute.String("cloudinary.public_id", publicID),
		attribute.String("cloudinary.folder", s.folder),
	))
	defer span.End()

	overwrite := false
	params := uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     publicID,
		ResourceType: "image",
		Tags:         s.tags,
		Overwrite:    &overwrite,
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	if result.Error.Message != "" {
		err := fmt.Errorf("cloudinary rejected image: %s", result.Error.Message)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	s.logger.Info().Str("public_id", result.PublicID).Int("bytes", result.Bytes).Msg("image uploaded to cloudinary")
	return result.SecureURL, nil
}

// buildPublicID keeps the readable part of the file name and appends a unique suffix.
func buildPublicID(name, suffix string) string {
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	for strings.Contains(base, "--") {
		base = strings.ReplaceAll(base, "--", "-")
	}
	base = strings.Trim(base, "-")
	if base == "" {
		base = "entry"
	}
	if len(base) > 64 {
		base = strings.TrimRight(base[:64], "-")
	}

	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return base + "-" + suffix
}
