package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"alcyxob/fitness-protocols/internal/domain"
	"alcyxob/fitness-protocols/internal/logger"
	"alcyxob/fitness-protocols/internal/protocol"
	"alcyxob/fitness-protocols/internal/repository"
	"alcyxob/fitness-protocols/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrCatalogEntryNotFound = errors.New("catalog entry not found")

// CatalogService curates the exercise media catalog used by enrichment.
type CatalogService interface {
	List(ctx context.Context) ([]domain.CatalogEntry, error)
	// Upsert stores an entry. A media key is resolved to its public URL through storage.
	Upsert(ctx context.Context, entry domain.CatalogEntry) (*domain.CatalogEntry, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// Resolve reports which catalog media a free-text exercise name matches.
	Resolve(ctx context.Context, name string) (string, bool, error)
}

type catalogService struct {
	catalogRepo repository.CatalogRepository
	fileStorage storage.FileStorage
	log         *logger.Logger
}

func NewCatalogService(catalogRepo repository.CatalogRepository, fileStorage storage.FileStorage, log *logger.Logger) CatalogService {
	return &catalogService{catalogRepo: catalogRepo, fileStorage: fileStorage, log: log}
}

func (s *catalogService) List(ctx context.Context) ([]domain.CatalogEntry, error) {
	return s.catalogRepo.List(ctx)
}

func (s *catalogService) Upsert(ctx context.Context, entry domain.CatalogEntry) (*domain.CatalogEntry, error) {
	entry.CanonicalName = strings.TrimSpace(entry.CanonicalName)
	entry.MediaKey = strings.TrimSpace(entry.MediaKey)
	if entry.CanonicalName == "" {
		return nil, fmt.Errorf("%w: canonical name is required", ErrInvalidInput)
	}
	if entry.MediaURL == "" && entry.MediaKey != "" {
		if s.fileStorage == nil {
			return nil, ErrStorageUnavailable
		}
		entry.MediaURL = s.fileStorage.ObjectURL(entry.MediaKey)
	}
	if entry.MediaURL == "" {
		return nil, fmt.Errorf("%w: mediaUrl or mediaKey is required", ErrInvalidInput)
	}

	previousKey := s.previousMediaKey(ctx, entry.CanonicalName)

	id, err := s.catalogRepo.Upsert(ctx, &entry)
	if err != nil {
		return nil, err
	}
	entry.ID = id
	s.log.Info("Catalog entry saved", "name", entry.CanonicalName, "id", id.Hex())

	// The replaced media object is no longer referenced by the catalog.
	if previousKey != "" && previousKey != entry.MediaKey && s.fileStorage != nil {
		if err := s.fileStorage.DeleteObject(ctx, previousKey); err != nil {
			s.log.Warn("Failed to delete replaced catalog media", "key", previousKey, "error", err)
		}
	}
	return &entry, nil
}

func (s *catalogService) previousMediaKey(ctx context.Context, name string) string {
	if s.fileStorage == nil {
		return ""
	}
	entries, err := s.catalogRepo.List(ctx)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.CanonicalName == name {
			return e.MediaKey
		}
	}
	return ""
}

func (s *catalogService) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := s.catalogRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCatalogEntryNotFound
		}
		return err
	}
	return nil
}

func (s *catalogService) Resolve(ctx context.Context, name string) (string, bool, error) {
	catalog, err := s.catalogRepo.List(ctx)
	if err != nil {
		return "", false, err
	}
	url, ok := protocol.Match(name, catalog)
	return url, ok, nil
}
