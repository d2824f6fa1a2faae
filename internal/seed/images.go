package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/amankumarsingh77/directory_pipeline/internal/storage"
	"github.com/amankumarsingh77/directory_pipeline/pkg/logger"
	"github.com/amankumarsingh77/directory_pipeline/pkg/retry"
)

//go:embed assets/placeholder.png
var placeholderPNG []byte

var errNotImage = errors.New("response is not an image")

var extByType = map[string]string{
	"image/png":                "png",
	"image/jpeg":               "jpg",
	"image/gif":                "gif",
	"image/webp":               "webp",
	"image/svg+xml":            "svg",
	"image/avif":               "avif",
	"image/x-icon":             "ico",
	"image/vnd.microsoft.icon": "ico",
}

type imageFetcher interface {
	GetBytes(ctx context.Context, url string, limit int64) ([]byte, string, error)
}

type imageUploader struct {
	fetcher  imageFetcher
	objects  storage.ObjectStore
	retries  int
	backoff  time.Duration
	maxBytes int64
	logger   logger.Logger
}

// upload copies the logo at src into the bucket and returns its public URL.
// After the retries run out it uploads the bundled placeholder instead, so
// fellBack only turns into an error when the placeholder fails as well.
func (u *imageUploader) upload(ctx context.Context, codename, src string) (publicURL string, fellBack bool, err error) {
	name := SanitizeEntityName(codename)
	if name == "" {
		name = "unnamed"
	}

	if src != "" {
		policy := retry.WithRetries(u.retries)
		policy.InitialDelay = u.backoff
		policy.IsRetryable = func(err error) bool { return ctx.Err() == nil }
		policy.OnRetry = func(attempt int, err error) {
			u.logger.Debug("logo upload failed, retrying",
				logger.String("codename", codename),
				logger.Int("attempt", attempt),
				logger.Error(err),
			)
		}
		err = retry.Do(ctx, policy, func(int) error {
			data, contentType, fetchErr := u.fetcher.GetBytes(ctx, src, u.maxBytes)
			if fetchErr != nil {
				return fetchErr
			}
			contentType, ext, typeErr := imageType(data, contentType, src)
			if typeErr != nil {
				return typeErr
			}
			publicURL, fetchErr = u.objects.Upload(ctx, "logos/"+name+"."+ext, data, contentType)
			return fetchErr
		})
		if err == nil {
			return publicURL, false, nil
		}
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		u.logger.Warn("using placeholder logo", logger.String("codename", codename), logger.String("src", src), logger.Error(err))
	}

	publicURL, err = u.objects.Upload(ctx, "logos/"+name+".png", placeholderPNG, "image/png")
	if err != nil {
		return "", true, fmt.Errorf("failed to upload placeholder logo: %w", err)
	}
	return publicURL, true, nil
}

func imageType(data []byte, contentType, src string) (string, string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(data)
		if i := strings.Index(mediaType, ";"); i >= 0 {
			mediaType = mediaType[:i]
		}
	}
	if ext, ok := extByType[mediaType]; ok {
		return mediaType, ext, nil
	}
	// SVGs are often served as text/xml or text/plain.
	if strings.EqualFold(path.Ext(src), ".svg") && strings.Contains(string(data[:min(len(data), 512)]), "<svg") {
		return "image/svg+xml", "svg", nil
	}
	return "", "", fmt.Errorf("%w: %s", errNotImage, mediaType)
}
