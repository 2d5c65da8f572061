package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

var (
	ErrInvalidContentType = errors.New("unsupported content type")
	ErrForeignKey         = errors.New("object key does not belong to this user")
)

// Allowed check-in photo types and the extension used for their keys.
var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// FileStorage defines the interface for object storage operations.
type FileStorage interface {
	// GeneratePresignedUploadURL creates a temporary URL that allows PUT requests
	// for uploading an object directly to the storage provider.
	GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error)

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading/viewing an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error

	// ObjectExists reports whether an object was actually written under objectKey.
	ObjectExists(ctx context.Context, objectKey string) (bool, error)

	// ObjectURL returns the stable public URL of an object, used for catalog media.
	ObjectURL(objectKey string) string

	// Owns reports whether url already points into this store.
	Owns(url string) bool
}

// PhotoKey builds the object key for a new check-in photo.
// Keys are namespaced by user so a check-in can only reference its owner's uploads.
func PhotoKey(userID primitive.ObjectID, contentType string) (string, error) {
	ext, ok := photoExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidContentType, contentType)
	}
	return path.Join("checkins", userID.Hex(), uuid.NewString()+ext), nil
}

// CheckPhotoKey verifies a client-supplied key lies in userID's photo namespace.
// It does not prove the object exists; see FileStorage.ObjectExists.
func CheckPhotoKey(userID primitive.ObjectID, key string) error {
	prefix := path.Join("checkins", userID.Hex()) + "/"
	clean := path.Clean(key)
	if !strings.HasPrefix(clean, prefix) || clean != key {
		return ErrForeignKey
	}
	return nil
}

// publicURL joins a base URL and object key. It is shared by the S3 store and tests.
type publicURL string

func (b publicURL) objectURL(key string) string {
	if b == "" {
		return ""
	}
	return strings.TrimRight(string(b), "/") + "/" + strings.TrimLeft(key, "/")
}

func (b publicURL) owns(url string) bool {
	if b == "" || url == "" {
		return false
	}
	return strings.HasPrefix(url, strings.TrimRight(string(b), "/")+"/")
}
