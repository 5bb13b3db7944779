package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-timetable-api/internal/models"
	appErrors "github.com/noah-isme/exam-timetable-api/pkg/errors"
)

type catalogRepoStub struct {
	catalog  models.Catalog
	latest   *models.CatalogImport
	loads    int
	writeErr error
}

func (r *catalogRepoStub) ReplaceCatalog(ctx context.Context, batch *models.CatalogImport, catalog models.Catalog) error {
	if r.writeErr != nil {
		return r.writeErr
	}
	batch.ID = "import-1"
	batch.CreatedAt = time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	r.catalog = catalog
	copied := *batch
	r.latest = &copied
	return nil
}

func (r *catalogRepoStub) Load(ctx context.Context) (models.Catalog, error) {
	r.loads++
	return r.catalog, nil
}

func (r *catalogRepoStub) LatestImport(ctx context.Context) (*models.CatalogImport, error) {
	return r.latest, nil
}

const enrollmentCSV = `SPRIDEN_ID,STUDENT_NAME,CF_INSTRUCTOR,SSBSECT_SUBJ_CODE,SSBSECT_CRSE_NUMB,SCBCRSE_TITLE,SSBSECT_SEQ_NUMB,SSBSECT_CRN
s1,Adam Lee,Dr. Stone,MATH,101,Calculus I,01,10001
s2,Zoe Park,Dr. Stone,MATH,101,Calculus I,01,10001
s2,Zoe Park,Dr. Reed,PHYS,201,Mechanics,01,20001
,Nobody,Dr. Reed,PHYS,201,Mechanics,01,20001
`

func newCatalogServiceForTest(t *testing.T) (*CatalogService, *catalogRepoStub, *TimetableService, *memoryCacheRepo, *MetricsService) {
	t.Helper()
	repo := &catalogRepoStub{}
	cacheRepo := newMemoryCacheRepo()
	metrics := NewMetricsService()
	cache := NewCacheService(cacheRepo, metrics, time.Minute, zap.NewNop(), true)
	timetableSvc, _ := newTimetableServiceForTest(t, testCourse("old", "OLD100"))
	svc := NewCatalogService(repo, timetableSvc, cache, metrics, zap.NewNop(), CatalogConfig{CacheTTL: time.Hour})
	return svc, repo, timetableSvc, cacheRepo, metrics
}

func TestCatalogServiceImport(t *testing.T) {
	svc, repo, timetableSvc, cacheRepo, _ := newCatalogServiceForTest(t)
	_, err := timetableSvc.AddWeek(context.Background())
	require.NoError(t, err)
	place(t, timetableSvc, "old", 2, "Monday", "09:00")
	cacheRepo.entries[RosterCacheKey(time.Unix(1, 0), 1)] = []byte(`{}`)

	resp, err := svc.Import(context.Background(), strings.NewReader(enrollmentCSV), "spring.csv", "coordinator-1")
	require.NoError(t, err)
	assert.Equal(t, "import-1", resp.Import.ID)
	assert.Equal(t, 2, resp.Courses)
	assert.Equal(t, 2, resp.Students)
	assert.Equal(t, 4, resp.Rows)
	assert.Equal(t, 1, resp.Skipped)
	assert.Equal(t, "coordinator-1", repo.latest.ImportedBy)

	snap := timetableSvc.Snapshot()
	assert.Equal(t, []int{1}, snap.Grid.Weeks())
	assert.Empty(t, snap.Grid.Cells())
	_, ok := snap.Catalog.Course("MATH-101")
	assert.True(t, ok)
	_, ok = snap.Catalog.Course("old")
	assert.False(t, ok)

	assert.Contains(t, cacheRepo.entries, CatalogCacheKey())
	assert.Equal(t, time.Hour, cacheRepo.ttls[CatalogCacheKey()])
	assert.NotContains(t, cacheRepo.entries, RosterCacheKey(time.Unix(1, 0), 1))
}

func TestCatalogServiceImportRejectsEmptyFile(t *testing.T) {
	svc, repo, timetableSvc, _, _ := newCatalogServiceForTest(t)

	_, err := svc.Import(context.Background(), strings.NewReader(""), "empty.csv", "coordinator-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrEmptyUpload))
	assert.Nil(t, repo.latest)
	assert.Equal(t, 1, timetableSvc.Snapshot().Catalog.Len())
}

func TestCatalogServiceImportStoreFailureKeepsCatalog(t *testing.T) {
	svc, repo, timetableSvc, cacheRepo, _ := newCatalogServiceForTest(t)
	repo.writeErr = errors.New("tx failed")

	_, err := svc.Import(context.Background(), strings.NewReader(enrollmentCSV), "spring.csv", "coordinator-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	_, ok := timetableSvc.Snapshot().Catalog.Course("old")
	assert.True(t, ok)
	assert.NotContains(t, cacheRepo.entries, CatalogCacheKey())
}

func TestCatalogServiceCurrentPrefersCache(t *testing.T) {
	svc, repo, _, _, _ := newCatalogServiceForTest(t)
	repo.catalog = models.Catalog{Courses: []models.Course{testCourse("a", "MATH101")}}

	first, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Courses, 1)

	second, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Courses[0].ID, second.Courses[0].ID)
	assert.Equal(t, 1, repo.loads)
}

func TestCatalogServiceLatestImport(t *testing.T) {
	svc, repo, _, _, _ := newCatalogServiceForTest(t)

	_, err := svc.LatestImport(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	repo.latest = &models.CatalogImport{ID: "import-9", Filename: "fall.csv"}
	batch, err := svc.LatestImport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fall.csv", batch.Filename)
}
