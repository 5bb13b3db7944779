package service

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-timetable-api/internal/dto"
	"github.com/noah-isme/exam-timetable-api/internal/ingest"
	"github.com/noah-isme/exam-timetable-api/internal/models"
	appErrors "github.com/noah-isme/exam-timetable-api/pkg/errors"
)

type catalogStore interface {
	ReplaceCatalog(ctx context.Context, batch *models.CatalogImport, catalog models.Catalog) error
	Load(ctx context.Context) (models.Catalog, error)
	LatestImport(ctx context.Context) (*models.CatalogImport, error)
}

type catalogApplier interface {
	ReplaceCatalog(ctx context.Context, catalog models.Catalog, persist func(context.Context) error) error
}

// CatalogConfig tunes catalog caching.
type CatalogConfig struct {
	CacheTTL time.Duration
}

// CatalogService ingests enrollment files and serves the active catalog.
type CatalogService struct {
	repo      catalogStore
	timetable catalogApplier
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       CatalogConfig
}

// NewCatalogService constructs a catalog service.
func NewCatalogService(repo catalogStore, timetable catalogApplier, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg CatalogConfig) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, timetable: timetable, cache: cache, metrics: metrics, logger: logger, cfg: cfg}
}

// Import parses an enrollment file, replaces the stored catalog and resets
// the timetable to one empty week.
func (s *CatalogService) Import(ctx context.Context, r io.Reader, filename, actorID string) (*dto.ImportResponse, error) {
	result, err := ingest.ParseEnrollments(r)
	if err != nil {
		return nil, err
	}

	batch := &models.CatalogImport{
		Filename:     filename,
		CourseCount:  len(result.Courses),
		StudentCount: result.StudentCount(),
		ImportedBy:   actorID,
	}
	catalog := models.Catalog{Courses: result.Courses, Directory: result.Directory}

	persist := func(ctx context.Context) error {
		if err := s.repo.ReplaceCatalog(ctx, batch, catalog); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store catalog")
		}
		return nil
	}
	if err := s.timetable.ReplaceCatalog(ctx, catalog, persist); err != nil {
		return nil, err
	}

	_ = s.cache.Set(ctx, CatalogCacheKey(), catalog, s.cfg.CacheTTL)
	_ = s.cache.Invalidate(ctx, RosterCachePattern())
	s.metrics.RecordCatalogImport(batch.CourseCount)

	s.logger.Sugar().Infow("enrollment catalog imported",
		"import_id", batch.ID,
		"filename", filename,
		"courses", batch.CourseCount,
		"students", batch.StudentCount,
		"rows", result.Rows,
		"skipped_rows", result.Skipped,
		"actor", actorID,
	)
	return &dto.ImportResponse{
		Import:   *batch,
		Courses:  batch.CourseCount,
		Students: batch.StudentCount,
		Rows:     result.Rows,
		Skipped:  result.Skipped,
	}, nil
}

// Current returns the active catalog, preferring the cached snapshot.
func (s *CatalogService) Current(ctx context.Context) (models.Catalog, error) {
	var catalog models.Catalog
	if hit, _ := s.cache.Get(ctx, CatalogCacheKey(), &catalog); hit {
		return catalog, nil
	}
	catalog, err := s.repo.Load(ctx)
	if err != nil {
		return models.Catalog{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load catalog")
	}
	_ = s.cache.Set(ctx, CatalogCacheKey(), catalog, s.cfg.CacheTTL)
	return catalog, nil
}

// LatestImport describes the most recent upload.
func (s *CatalogService) LatestImport(ctx context.Context) (*models.CatalogImport, error) {
	batch, err := s.repo.LatestImport(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest import")
	}
	if batch == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no catalog has been imported yet")
	}
	return batch, nil
}
