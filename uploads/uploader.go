// Package uploads stores message attachments in external object storage and returns
// the public URL of the stored file.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	config "github.com/anjiri1684/social_messaging/configs"
	"github.com/google/uuid"
)

const MessageFilesFolder = "messageFiles"

var ErrStorageDisabled = errors.New("file storage is not configured")

type Uploader interface {
	Upload(ctx context.Context, data []byte, filename, folder string) (string, error)
}

// New picks the storage backend named by STORAGE_DRIVER.
func New(s *config.Settings) (Uploader, error) {
	switch strings.ToLower(s.StorageDriver) {
	case "cloudinary":
		if s.CloudinaryURL == "" {
			return nil, errors.New("CLOUDINARY_URL is required for the cloudinary storage driver")
		}
		return NewCloudinaryUploader(s.CloudinaryURL, s.UploadTimeout)
	case "s3":
		return NewS3Uploader(context.Background(), S3Options{
			Bucket:          s.S3Bucket,
			Region:          s.S3Region,
			Endpoint:        s.S3Endpoint,
			PublicURL:       s.S3PublicURL,
			AccessKeyID:     s.S3AccessKeyID,
			SecretAccessKey: s.S3SecretAccessKey,
			Timeout:         s.UploadTimeout,
		})
	case "none":
		return Disabled{}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", s.StorageDriver)
}

// Disabled rejects every upload. Messages without attachments still work.
type Disabled struct{}

func (Disabled) Upload(context.Context, []byte, string, string) (string, error) {
	return "", ErrStorageDisabled
}

// objectKey builds "<folder>/<uuid><ext>" so user supplied names never reach the
// storage namespace.
func objectKey(folder, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	name := uuid.NewString() + ext
	if folder == "" {
		return name
	}
	return strings.Trim(folder, "/") + "/" + name
}
