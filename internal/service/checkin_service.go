package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"alcyxob/fitness-protocols/internal/domain"
	"alcyxob/fitness-protocols/internal/logger"
	"alcyxob/fitness-protocols/internal/repository"
	"alcyxob/fitness-protocols/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrStorageUnavailable = errors.New("object storage is not configured")
	ErrTooManyPhotos      = errors.New("too many photos in one check-in")
)

// MaxPhotosPerCheckin bounds a single check-in.
const MaxPhotosPerCheckin = 6

// PhotoUpload is a presigned PUT the client uses to upload one progress photo.
type PhotoUpload struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

// CheckinService records progress check-ins. Photo check-ins reopen the generation gate.
type CheckinService interface {
	RequestPhotoUpload(ctx context.Context, userID primitive.ObjectID, contentType string) (*PhotoUpload, error)
	Create(ctx context.Context, userID primitive.ObjectID, photoKeys []string, notes string, weightKg float64) (*domain.CheckIn, error)
	List(ctx context.Context, userID primitive.ObjectID) ([]domain.CheckIn, error)
}

type checkinService struct {
	checkinRepo repository.CheckinRepository
	fileStorage storage.FileStorage // nil when S3 is not configured
	log         *logger.Logger
}

func NewCheckinService(checkinRepo repository.CheckinRepository, fileStorage storage.FileStorage, log *logger.Logger) CheckinService {
	return &checkinService{checkinRepo: checkinRepo, fileStorage: fileStorage, log: log}
}

func (s *checkinService) RequestPhotoUpload(ctx context.Context, userID primitive.ObjectID, contentType string) (*PhotoUpload, error) {
	if s.fileStorage == nil {
		return nil, ErrStorageUnavailable
	}
	key, err := storage.PhotoKey(userID, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	url, err := s.fileStorage.GeneratePresignedUploadURL(ctx, key, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, err
	}
	return &PhotoUpload{UploadURL: url, ObjectKey: key}, nil
}

// Create stores a check-in. Photo keys must belong to the same user and
// point at objects that were actually uploaded.
func (s *checkinService) Create(ctx context.Context, userID primitive.ObjectID, photoKeys []string, notes string, weightKg float64) (*domain.CheckIn, error) {
	if len(photoKeys) > MaxPhotosPerCheckin {
		return nil, ErrTooManyPhotos
	}
	keys := make([]string, 0, len(photoKeys))
	for _, k := range photoKeys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if err := storage.CheckPhotoKey(userID, k); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		keys = append(keys, k)
	}
	if err := s.checkUploaded(ctx, keys); err != nil {
		return nil, err
	}
	notes = strings.TrimSpace(notes)
	if len(keys) == 0 && notes == "" && weightKg <= 0 {
		return nil, fmt.Errorf("%w: empty check-in", ErrInvalidInput)
	}

	checkin := &domain.CheckIn{
		UserID:    userID,
		PhotoKeys: keys,
		Notes:     notes,
		WeightKg:  weightKg,
	}
	id, err := s.checkinRepo.Create(ctx, checkin)
	if err != nil {
		return nil, err
	}
	checkin.ID = id
	s.log.Info("Check-in recorded", "userId", userID.Hex(), "photos", len(keys))
	return checkin, nil
}

func (s *checkinService) checkUploaded(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if s.fileStorage == nil {
		return ErrStorageUnavailable
	}
	for _, k := range keys {
		ok, err := s.fileStorage.ObjectExists(ctx, k)
		if err != nil {
			return fmt.Errorf("checking photo %s: %w", k, err)
		}
		if !ok {
			return fmt.Errorf("%w: photo %s was not uploaded", ErrInvalidInput, k)
		}
	}
	return nil
}

// List returns the user's check-ins, newest first, with short-lived photo URLs
// when object storage is configured.
func (s *checkinService) List(ctx context.Context, userID primitive.ObjectID) ([]domain.CheckIn, error) {
	checkins, err := s.checkinRepo.ListByUser(ctx, userID)
	if err != nil || s.fileStorage == nil {
		return checkins, err
	}
	for i := range checkins {
		for _, key := range checkins[i].PhotoKeys {
			url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, key, storage.DefaultPresignedURLExpiry)
			if err != nil {
				s.log.Warn("Failed to presign photo download", "key", key, "error", err)
				continue
			}
			checkins[i].PhotoURLs = append(checkins[i].PhotoURLs, url)
		}
	}
	return checkins, nil
}
