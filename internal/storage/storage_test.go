package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"alcyxob/fitness-protocols/internal/config"
	"alcyxob/fitness-protocols/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPhotoKey(t *testing.T) {
	userID := primitive.NewObjectID()

	key, err := PhotoKey(userID, "image/JPEG")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "checkins/"+userID.Hex()+"/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.NoError(t, CheckPhotoKey(userID, key))

	_, err = PhotoKey(userID, "application/pdf")
	assert.ErrorIs(t, err, ErrInvalidContentType)
}

func TestCheckPhotoKey_RejectsForeignKeys(t *testing.T) {
	userID := primitive.NewObjectID()
	other := primitive.NewObjectID()

	assert.ErrorIs(t, CheckPhotoKey(userID, "checkins/"+other.Hex()+"/a.jpg"), ErrForeignKey)
	assert.ErrorIs(t, CheckPhotoKey(userID, "checkins/"+userID.Hex()+"/../"+other.Hex()+"/a.jpg"), ErrForeignKey)
	assert.ErrorIs(t, CheckPhotoKey(userID, "media/a.gif"), ErrForeignKey)
}

func TestPublicURL(t *testing.T) {
	base := publicURL("https://cdn.example.com/media/")

	assert.Equal(t, "https://cdn.example.com/media/exercises/squat.gif", base.objectURL("/exercises/squat.gif"))
	assert.True(t, base.owns("https://cdn.example.com/media/exercises/squat.gif"))
	assert.False(t, base.owns("https://cdn.example.com/mediafake/x.gif"))
	assert.False(t, base.owns("https://other.example.com/x.gif"))

	var empty publicURL
	assert.Equal(t, "", empty.objectURL("a"))
	assert.False(t, empty.owns("https://cdn.example.com/media/a"))
}

func TestNewS3Storage_PresignsAgainstEndpoint(t *testing.T) {
	store, err := NewS3Storage(context.Background(), config.S3Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		BucketName:      "protocols",
	}, logger.NewNop())
	require.NoError(t, err)

	url, err := store.GeneratePresignedUploadURL(context.Background(), "checkins/u/a.jpg", "image/jpeg", 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/protocols/checkins/u/a.jpg"))

	assert.Equal(t, "http://localhost:9000/protocols/exercises/a.gif", store.ObjectURL("exercises/a.gif"))
	assert.True(t, store.Owns("http://localhost:9000/protocols/exercises/a.gif"))

	_, err = NewS3Storage(context.Background(), config.S3Config{}, logger.NewNop())
	assert.Error(t, err)
}

func TestS3Storage_ObjectExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		switch r.URL.Path {
		case "/protocols/checkins/u/uploaded.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.WriteHeader(http.StatusOK)
		case "/protocols/checkins/u/locked.jpg":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store, err := NewS3Storage(context.Background(), config.S3Config{
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		BucketName:      "protocols",
	}, logger.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := store.ObjectExists(ctx, "checkins/u/uploaded.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ObjectExists(ctx, "checkins/u/never-sent.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.ObjectExists(ctx, "checkins/u/locked.jpg")
	assert.Error(t, err)
}
