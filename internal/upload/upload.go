// Package upload stores images and returns their public URL.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/config"
)

// ErrDisabled is returned by the noop uploader.
var ErrDisabled = errors.New("image upload is not configured")

// Uploader stores a file and returns where it can be fetched.
type Uploader interface {
	Upload(ctx context.Context, r io.Reader, name string) (string, error)
}

// Module provides the configured Uploader.
var Module = fx.Provide(NewUploader)

// NewUploader selects the backend from configuration.
func NewUploader(cfg config.Config, logger *zap.Logger) (Uploader, error) {
	switch cfg.Upload.Driver {
	case "cloudinary":
		cld, err := cloudinary.NewFromParams(cfg.Upload.CloudName, cfg.Upload.APIKey, cfg.Upload.APISecret)
		if err != nil {
			return nil, fmt.Errorf("init cloudinary: %w", err)
		}
		logger.Info("image uploads enabled", zap.String("driver", "cloudinary"), zap.String("folder", cfg.Upload.Folder))
		return &cloudinaryUploader{api: cld.Upload.Upload, folder: cfg.Upload.Folder}, nil
	default:
		return noopUploader{}, nil
	}
}

type noopUploader struct{}

func (noopUploader) Upload(context.Context, io.Reader, string) (string, error) {
	return "", ErrDisabled
}

type uploadFunc func(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)

type cloudinaryUploader struct {
	api    uploadFunc
	folder string
}

func (c *cloudinaryUploader) Upload(ctx context.Context, r io.Reader, name string) (string, error) {
	res, err := c.api(ctx, r, uploader.UploadParams{
		Folder:       c.folder,
		PublicID:     PublicID(name),
		ResourceType: "image",
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

// PublicID strips directories and the extension from a file name and keeps
// only characters safe in a public id.
func PublicID(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}
