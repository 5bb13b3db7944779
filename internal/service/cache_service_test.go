package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-timetable-api/internal/models"
	appErrors "github.com/noah-isme/exam-timetable-api/pkg/errors"
)

type memoryCacheRepo struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
	err     error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if m.err != nil {
		return m.err
	}
	data, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.err != nil {
		return m.err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = data
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCacheRepo) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.entries, key)
	}
	return m.err
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range m.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.entries, key)
		}
	}
	return m.err
}

func TestCacheKeys(t *testing.T) {
	revision := time.Unix(0, 1700000000123)
	assert.Equal(t, "exam-timetable:catalog:current", CatalogCacheKey())
	assert.Equal(t, "exam-timetable:roster:1700000000123:2", RosterCacheKey(revision, 2))
	assert.Equal(t, "exam-timetable:roster:*", RosterCachePattern())
}

func TestCacheServiceRoundTripAndMetrics(t *testing.T) {
	repo := newMemoryCacheRepo()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var out models.Catalog
	hit, err := svc.Get(ctx, CatalogCacheKey(), &out)
	require.NoError(t, err)
	assert.False(t, hit)

	in := models.Catalog{Courses: []models.Course{{ID: "MATH-101", Code: "MATH-101"}}}
	require.NoError(t, svc.Set(ctx, CatalogCacheKey(), in, 0))
	assert.Equal(t, time.Minute, repo.ttls[CatalogCacheKey()])

	hit, err = svc.Get(ctx, CatalogCacheKey(), &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "MATH-101", out.Courses[0].ID)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheMisses))
	assert.Equal(t, 0.5, testutil.ToFloat64(metrics.cacheHitRatio))
}

func TestCacheServiceInvalidatePattern(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	revision := time.Unix(10, 0)
	require.NoError(t, svc.Set(ctx, RosterCacheKey(revision, 1), "w1", 0))
	require.NoError(t, svc.Set(ctx, RosterCacheKey(revision, 2), "w2", 0))
	require.NoError(t, svc.Set(ctx, CatalogCacheKey(), "catalog", 0))

	require.NoError(t, svc.Invalidate(ctx, RosterCachePattern()))
	assert.Len(t, repo.entries, 1)
	assert.Contains(t, repo.entries, CatalogCacheKey())

	require.NoError(t, svc.Delete(ctx, CatalogCacheKey()))
	assert.Empty(t, repo.entries)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), false)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", "v", 0))
	assert.Empty(t, repo.entries)

	var nilSvc *CacheService
	hit, err := nilSvc.Get(ctx, "k", new(string))
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, nilSvc.Invalidate(ctx, "*"))
}

func TestCacheServiceBackendErrorsSurface(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.err = errors.New("connection refused")
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	hit, err := svc.Get(context.Background(), "k", new(string))
	assert.False(t, hit)
	require.Error(t, err)
	assert.Error(t, svc.Set(context.Background(), "k", "v", 0))
}

func TestTimetableServiceRosterUsesCache(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	store := &timetableStoreStub{}
	svc := NewTimetableService(store, cache, nil, nil, zap.NewNop(), testDefaults())
	require.NoError(t, svc.Load(context.Background(), models.Catalog{Courses: []models.Course{
		testCourse("a", "MATH101", testStudents("s", 5)...),
	}}))
	place(t, svc, "a", 1, "Monday", "09:00")

	first, err := svc.Roster(context.Background(), 1)
	require.NoError(t, err)
	key := RosterCacheKey(svc.Snapshot().Settings.UpdatedAt, 1)
	require.Contains(t, repo.entries, key)

	// A stale entry under the same revision is served as is.
	stale := *first
	stale.Rows = stale.Rows[:0]
	require.NoError(t, cache.Set(context.Background(), key, stale, 0))
	cached, err := svc.Roster(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, cached.Rows)

	// Any commit moves the revision and bypasses the old entry.
	place(t, svc, "a", 1, "Monday", "10:00")
	fresh, err := svc.Roster(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, fresh.Rows, 1)
}

func TestMetricsServiceTimetableAndExports(t *testing.T) {
	metrics := NewMetricsService()
	metrics.SetTimetableState(3, 2, map[string]int{"overlap": 2}, "overlap", "capacity")
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.scheduledCourses))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.weeks))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.conflicts.WithLabelValues("overlap")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.conflicts.WithLabelValues("capacity")))

	metrics.RecordCatalogImport(12)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.catalogImports))
	assert.Equal(t, float64(12), testutil.ToFloat64(metrics.catalogCourses))

	metrics.RecordExport("csv", "FINISHED", time.Second)
	metrics.RecordExport("csv", "FINISHED", time.Second)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.exportJobs.WithLabelValues("csv", "FINISHED")))

	var nilMetrics *MetricsService
	assert.NotPanics(t, func() {
		nilMetrics.RecordExport("pdf", "FAILED", 0)
		nilMetrics.SetTimetableState(0, 1, nil)
		nilMetrics.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
	})
}
