package upload

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/config"
)

func TestPublicID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"burger.png", "burger"},
		{"/tmp/uploads/Burger House.JPG", "burger_house"},
		{`C:\fotos\açaí-1.jpeg`, "aa-1"},
		{"", "image"},
	}
	for _, tt := range tests {
		if got := PublicID(tt.in); got != tt.want {
			t.Errorf("PublicID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCloudinaryUploader(t *testing.T) {
	ctx := context.Background()

	t.Run("returns secure url", func(t *testing.T) {
		var got uploader.UploadParams
		u := &cloudinaryUploader{folder: "deliverypro", api: func(_ context.Context, _ interface{}, p uploader.UploadParams) (*uploader.UploadResult, error) {
			got = p
			return &uploader.UploadResult{SecureURL: "https://res.cloudinary.com/demo/image/upload/deliverypro/burger.png"}, nil
		}}

		url, err := u.Upload(ctx, strings.NewReader("img"), "burger.png")
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		if !strings.HasSuffix(url, "/burger.png") {
			t.Errorf("url = %s", url)
		}
		if got.Folder != "deliverypro" || got.PublicID != "burger" || got.ResourceType != "image" {
			t.Errorf("params = %+v", got)
		}
	})

	t.Run("api error", func(t *testing.T) {
		u := &cloudinaryUploader{api: func(context.Context, interface{}, uploader.UploadParams) (*uploader.UploadResult, error) {
			return &uploader.UploadResult{Error: api.ErrorResp{Message: "Invalid image file"}}, nil
		}}
		if _, err := u.Upload(ctx, strings.NewReader(""), "x.png"); err == nil || !strings.Contains(err.Error(), "Invalid image file") {
			t.Fatalf("Upload() error = %v", err)
		}
	})
}

func TestNewUploader_Noop(t *testing.T) {
	u, err := NewUploader(config.Config{Upload: config.Upload{Driver: "noop"}}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}
	if _, err := u.Upload(context.Background(), strings.NewReader(""), "a.png"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Upload() error = %v, want ErrDisabled", err)
	}
}
