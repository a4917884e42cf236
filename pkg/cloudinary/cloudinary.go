package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores lesson media on Cloudinary.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
		now:    time.Now,
	}, nil
}

// Upload stores body under folder (relative to the configured root folder) and returns the secure URL.
// Videos are uploaded as video resources; everything else as raw files so PDFs keep their extension.
func (s *Service) Upload(ctx context.Context, folder, name, contentType string, body io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       path.Join(strings.Trim(s.folder, "/"), strings.Trim(folder, "/")),
		PublicID:     buildPublicID(name, contentType, s.now()),
		ResourceType: resourceType(contentType),
	}

	result, err := s.client.Upload.Upload(ctx, body, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected asset: %s", result.Error.Message)
	}

	s.logger.Info().
		Str("public_id", result.PublicID).
		Str("resource_type", params.ResourceType).
		Msg("lesson media uploaded")

	return result.SecureURL, nil
}

func resourceType(contentType string) string {
	if strings.HasPrefix(contentType, "video/") {
		return "video"
	}
	return "raw"
}

// buildPublicID slugs the file name and appends a timestamp. Raw resources keep their
// extension in the public id because Cloudinary does not append a format for them.
func buildPublicID(name, contentType string, at time.Time) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "lesson"
	}

	id := fmt.Sprintf("%s-%d", strings.ToLower(base), at.Unix())
	if resourceType(contentType) == "raw" && ext != "" {
		id += ext
	}
	return id
}
