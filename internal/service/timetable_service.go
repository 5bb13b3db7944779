package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-timetable-api/internal/dto"
	"github.com/noah-isme/exam-timetable-api/internal/models"
	"github.com/noah-isme/exam-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/exam-timetable-api/pkg/errors"
)

type timetableStore interface {
	GetSettings(ctx context.Context) (*models.TimetableSettings, error)
	ListAssignments(ctx context.Context) ([]models.ExamAssignment, error)
	SaveState(ctx context.Context, settings *models.TimetableSettings, rows []models.ExamAssignment) error
}

// TimetableDefaults seeds the settings row on first start.
type TimetableDefaults struct {
	SlotIntervalMinutes int
	StartHour           int
	EndHour             int
	StudentsPerRoom     int
	InvigilatorPoolSize int
	WeekCount           int
	StartDate           time.Time
}

// defaultStartOffset is how far ahead the first exam week starts when no
// start date is configured.
const defaultStartOffset = 14 * 24 * time.Hour

// TimetableSnapshot is an immutable view of the timetable. Grids are
// copy-on-write and catalogs are replaced wholesale, so a snapshot stays
// consistent while the service moves on.
type TimetableSnapshot struct {
	Grid     *timetable.Grid
	Catalog  *timetable.Catalog
	Settings models.TimetableSettings
}

// RosterOptions derives engine roster options from the settings.
func (s TimetableSnapshot) RosterOptions() timetable.RosterOptions {
	return timetable.RosterOptions{
		StudentsPerRoom: s.Settings.StudentsPerRoom,
		Invigilators:    timetable.Placeholders(s.Settings.InvigilatorPoolSize),
		StartDate:       s.Settings.StartDate,
	}
}

// Roster builds the staffed roster of one week.
func (s TimetableSnapshot) Roster(week int) (timetable.WeekRoster, bool) {
	return timetable.BuildWeekRoster(s.Grid, s.Catalog, week, s.RosterOptions())
}

// Conflicts runs the conflict detector over the snapshot.
func (s TimetableSnapshot) Conflicts() timetable.ConflictReport {
	return timetable.DetectConflicts(s.Grid, s.Catalog, s.Settings.StudentsPerRoom, s.Settings.InvigilatorPoolSize)
}

// Freeze records the snapshot's settings and placements so it can be rebuilt
// later against whatever catalog is current then.
func (s TimetableSnapshot) Freeze() *models.FrozenTimetable {
	settings := s.Settings
	settings.WeekCount = len(s.Grid.Weeks())
	return &models.FrozenTimetable{Settings: settings, Assignments: assignmentRows(s.Grid)}
}

// Thaw rebuilds a frozen grid over this snapshot's catalog. Courses missing
// from the catalog are ignored by every engine stage.
func (s TimetableSnapshot) Thaw(frozen *models.FrozenTimetable) TimetableSnapshot {
	if frozen == nil {
		return s
	}
	placements, _ := placementsFrom(frozen.Assignments)
	settings := frozen.Settings
	grid, _ := timetable.FromPlacements(settings.WeekCount,
		timetable.BuildTimeSlots(settings.StartHour, settings.EndHour, settings.SlotIntervalMinutes), placements)
	return TimetableSnapshot{Grid: grid, Catalog: s.Catalog, Settings: settings}
}

// TimetableService owns the single live grid. Mutations run
// clone, mutate, persist, swap under mu, so readers never see a grid that was
// not stored.
type TimetableService struct {
	store     timetableStore
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.RWMutex
	grid     *timetable.Grid
	catalog  *timetable.Catalog
	settings models.TimetableSettings
}

// NewTimetableService constructs the service with an empty grid built from
// defaults. Call Load to restore persisted state.
func NewTimetableService(store timetableStore, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, defaults TimetableDefaults) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	s := &TimetableService{
		store:     store,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
		catalog:   timetable.NewCatalog(nil, nil),
	}
	s.settings = s.normalizeSettings(models.TimetableSettings{
		SlotIntervalMinutes: defaults.SlotIntervalMinutes,
		StartHour:           defaults.StartHour,
		EndHour:             defaults.EndHour,
		StudentsPerRoom:     defaults.StudentsPerRoom,
		InvigilatorPoolSize: defaults.InvigilatorPoolSize,
		WeekCount:           defaults.WeekCount,
		StartDate:           defaults.StartDate,
	})
	s.grid = timetable.NewGrid(s.settings.WeekCount, s.slotsFor(s.settings))
	return s
}

// Load restores settings and placements from the store and installs the
// catalog. Placements that no longer fit the grid are dropped and the
// cleaned state is written back.
func (s *TimetableService) Load(ctx context.Context, catalog models.Catalog) error {
	stored, err := s.store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("load timetable settings: %w", err)
	}
	rows, err := s.store.ListAssignments(ctx)
	if err != nil {
		return fmt.Errorf("load exam assignments: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.settings
	persist := stored == nil
	if stored != nil {
		settings = s.normalizeSettings(*stored)
	}

	placements, invalid := placementsFrom(rows)
	grid, skipped := timetable.FromPlacements(settings.WeekCount, s.slotsFor(settings), placements)
	if dropped := invalid + len(skipped); dropped > 0 {
		s.logger.Sugar().Warnw("dropping stored placements that do not fit the grid", "count", dropped)
		persist = true
	}

	s.catalog = timetable.NewCatalog(catalog.Courses, catalog.Directory)
	s.metrics.SetCatalogSize(s.catalog.Len())
	if persist {
		if err := s.commit(ctx, grid, settings); err != nil {
			return err
		}
	} else {
		s.grid = grid
		s.settings = settings
		s.publish()
	}
	s.logger.Sugar().Infow("timetable loaded",
		"weeks", len(grid.Weeks()),
		"placements", len(grid.Cells()),
		"courses", s.catalog.Len(),
	)
	return nil
}

// Snapshot returns the current state for read-heavy consumers such as
// exports.
func (s *TimetableService) Snapshot() TimetableSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TimetableSnapshot{Grid: s.grid, Catalog: s.catalog, Settings: s.settings}
}

// BuildSnapshot assembles a detached snapshot from a parsed catalog and plan
// without touching storage. The grid gets as many weeks as the plan uses.
// Placements that do not fit, or name a course missing from the catalog,
// are returned.
func BuildSnapshot(catalog models.Catalog, settings models.TimetableSettings, placements []timetable.Placement) (TimetableSnapshot, []timetable.Placement) {
	cat := timetable.NewCatalog(catalog.Courses, catalog.Directory)
	known := make([]timetable.Placement, 0, len(placements))
	unknown := make([]timetable.Placement, 0)
	for _, p := range placements {
		if _, ok := cat.Course(p.CourseID); !ok {
			unknown = append(unknown, p)
			continue
		}
		if p.Week > settings.WeekCount {
			settings.WeekCount = p.Week
		}
		known = append(known, p)
	}

	normalizer := &TimetableService{now: time.Now}
	settings = normalizer.normalizeSettings(settings)
	grid, skipped := timetable.FromPlacements(settings.WeekCount, normalizer.slotsFor(settings), known)
	return TimetableSnapshot{Grid: grid, Catalog: cat, Settings: settings}, append(unknown, skipped...)
}

// Settings describes the current configuration and slot sequence.
func (s *TimetableService) Settings() dto.SettingsResponse {
	snap := s.Snapshot()
	return dto.SettingsResponse{
		Settings: snap.Settings,
		Slots:    snap.Grid.Slots(),
		Weeks:    snap.Grid.Weeks(),
	}
}

// UpdateSettings applies new settings and rebuilds the grid over the new
// slot sequence. Placements whose start slot vanished are dropped and
// returned.
func (s *TimetableService) UpdateSettings(ctx context.Context, req dto.UpdateSettingsRequest) (*dto.SettingsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable settings")
	}
	var startDate time.Time
	if req.StartDate != "" {
		parsed, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "startDate must be YYYY-MM-DD")
		}
		startDate = parsed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	next.SlotIntervalMinutes = req.SlotIntervalMinutes
	next.StartHour = req.StartHour
	next.EndHour = req.EndHour
	next.StudentsPerRoom = req.StudentsPerRoom
	next.InvigilatorPoolSize = req.InvigilatorPoolSize
	if !startDate.IsZero() {
		next.StartDate = startDate
	}
	next = s.normalizeSettings(next)

	grid, dropped := s.grid.Reshape(s.slotsFor(next))
	if err := s.commit(ctx, grid, next); err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		s.logger.Sugar().Warnw("settings change removed placements", "courses", dropped)
	}
	s.logger.Sugar().Infow("timetable settings updated",
		"interval", next.SlotIntervalMinutes,
		"start_hour", next.StartHour,
		"end_hour", next.EndHour,
		"students_per_room", next.StudentsPerRoom,
		"invigilators", next.InvigilatorPoolSize,
	)
	return &dto.SettingsResponse{
		Settings:         s.settings,
		Slots:            s.grid.Slots(),
		Weeks:            s.grid.Weeks(),
		DroppedCourseIDs: dropped,
	}, nil
}

// Weeks lists the grid's weeks in order.
func (s *TimetableService) Weeks() []int {
	return s.Snapshot().Grid.Weeks()
}

// AddWeek appends the next week.
func (s *TimetableService) AddWeek(ctx context.Context) (*dto.WeekResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grid, week, err := s.grid.AddWeek()
	if err != nil {
		return nil, mapGridError(err, 0)
	}
	if err := s.commit(ctx, grid, s.settings); err != nil {
		return nil, err
	}
	s.logger.Sugar().Infow("exam week added", "week", week)
	return &dto.WeekResponse{Week: week, Weeks: s.grid.Weeks()}, nil
}

// Place moves a course to the requested cell. Conflicts never block a
// placement; the cell's advisories are returned instead.
func (s *TimetableService) Place(ctx context.Context, req dto.PlacementRequest) (*dto.PlacementResponse, error) {
	day, err := s.validatePlacement(req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.catalog.Course(req.CourseID); !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownCourse, fmt.Sprintf("course %s is not in the catalog", req.CourseID))
	}
	grid, err := s.grid.Place(req.CourseID, req.Week, day, req.SlotID)
	if err != nil {
		return nil, mapGridError(err, req.Week)
	}
	if err := s.commit(ctx, grid, s.settings); err != nil {
		return nil, err
	}

	placement, _ := s.grid.Locate(req.CourseID)
	report := s.snapshotLocked().Conflicts()
	cell := report.Cell(req.Week, day, req.SlotID)
	s.logger.Sugar().Infow("exam placed",
		"course_id", req.CourseID,
		"week", req.Week,
		"day", day,
		"slot", req.SlotID,
		"cell_conflicts", len(cell),
	)
	return &dto.PlacementResponse{Placement: placement, Conflicts: cell}, nil
}

// Remove takes a course out of one cell. Removing a course that is not
// there is a no-op.
func (s *TimetableService) Remove(ctx context.Context, req dto.PlacementRequest) error {
	day, err := s.validatePlacement(req)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !containsString(s.grid.Courses(req.Week, day, req.SlotID), req.CourseID) {
		return nil
	}
	grid := s.grid.Remove(req.Week, day, req.SlotID, req.CourseID)
	if err := s.commit(ctx, grid, s.settings); err != nil {
		return err
	}
	s.logger.Sugar().Infow("exam removed", "course_id", req.CourseID, "week", req.Week, "day", day, "slot", req.SlotID)
	return nil
}

// Reset clears every placement and keeps weeks and settings.
func (s *TimetableService) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.commit(ctx, s.grid.Reset(), s.settings); err != nil {
		return err
	}
	s.logger.Sugar().Infow("timetable reset", "weeks", len(s.grid.Weeks()))
	return nil
}

// ReplaceCatalog installs a freshly imported catalog and starts over with a
// single empty week. persist runs under the service lock before anything
// changes in memory, so no placement can interleave with the import.
func (s *TimetableService) ReplaceCatalog(ctx context.Context, catalog models.Catalog, persist func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if persist != nil {
		if err := persist(ctx); err != nil {
			return err
		}
	}
	s.catalog = timetable.NewCatalog(catalog.Courses, catalog.Directory)
	next := s.settings
	next.WeekCount = 1
	return s.commit(ctx, timetable.NewGrid(1, s.grid.Slots()), next)
}

// WeekView renders one week of the grid with summaries and advisories.
func (s *TimetableService) WeekView(week int) (*dto.WeekView, error) {
	snap := s.Snapshot()
	if !snap.Grid.HasWeek(week) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("week %d does not exist", week))
	}
	report := snap.Conflicts()
	summary := timetable.SummarizeWeek(snap.Grid, snap.Catalog, week, snap.Settings.StudentsPerRoom)
	slots := snap.Grid.Slots()

	view := &dto.WeekView{
		Week:          week,
		Slots:         slots,
		OccupiedSlots: timetable.OccupiedSlots(snap.Grid, week),
		Days:          make([]dto.DayView, 0, len(timetable.Days)),
	}
	for _, day := range timetable.Days {
		dv := dto.DayView{
			Day:   day,
			Date:  timetable.FormatDate(timetable.DayDate(snap.Settings.StartDate, week, day)),
			Cells: make([]dto.CellView, 0, len(slots)),
		}
		for i, slot := range slots {
			ids := snap.Grid.Courses(week, day, slot.ID)
			cell := dto.CellView{
				SlotID:       slot.ID,
				Label:        slot.Label,
				CanStart:     snap.Grid.CanStartAt(slot.ID),
				Courses:      make([]dto.CourseSummary, 0, len(ids)),
				ContinuedIDs: []string{},
				Summary:      summary[day][slot.ID],
				Conflicts:    report.Cell(week, day, slot.ID),
			}
			for _, course := range snap.Catalog.Resolve(ids) {
				cell.Courses = append(cell.Courses, courseSummary(course, nil))
			}
			if i > 0 {
				cell.ContinuedIDs = append(cell.ContinuedIDs, snap.Grid.Courses(week, day, slots[i-1].ID)...)
			}
			view.ConflictCount += len(cell.Conflicts)
			dv.Cells = append(dv.Cells, cell)
		}
		view.Days = append(view.Days, dv)
	}
	return view, nil
}

// Conflicts runs the detector over the whole grid.
func (s *TimetableService) Conflicts() timetable.ConflictReport {
	return s.Snapshot().Conflicts()
}

// Overview returns the all-weeks totals.
func (s *TimetableService) Overview() timetable.Overview {
	snap := s.Snapshot()
	return timetable.Summarize(snap.Grid, snap.Catalog, snap.Settings.StudentsPerRoom)
}

// Roster returns the staffed roster of a week, served from cache when the
// same timetable revision was rostered before.
func (s *TimetableService) Roster(ctx context.Context, week int) (*timetable.WeekRoster, error) {
	snap := s.Snapshot()
	if !snap.Grid.HasWeek(week) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("week %d does not exist", week))
	}
	key := RosterCacheKey(snap.Settings.UpdatedAt, week)
	var cached timetable.WeekRoster
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}
	roster, _ := snap.Roster(week)
	_ = s.cache.Set(ctx, key, roster, 0)
	return &roster, nil
}

// AvailableCourses lists courses ordered by code then title. Scheduled
// courses are hidden unless includeScheduled is set. query matches code,
// title, sections and CRNs case-insensitively.
func (s *TimetableService) AvailableCourses(query string, includeScheduled bool) []dto.CourseSummary {
	snap := s.Snapshot()
	needle := strings.ToLower(strings.TrimSpace(query))

	courses := snap.Catalog.Courses()
	sort.SliceStable(courses, func(i, j int) bool {
		a, b := strings.ToLower(courses[i].Code), strings.ToLower(courses[j].Code)
		if a != b {
			return a < b
		}
		return strings.ToLower(courses[i].Title) < strings.ToLower(courses[j].Title)
	})

	out := make([]dto.CourseSummary, 0, len(courses))
	for _, course := range courses {
		placement, scheduled := snap.Grid.Locate(course.ID)
		if scheduled && !includeScheduled {
			continue
		}
		if needle != "" && !matchesCourse(course, needle) {
			continue
		}
		var where *timetable.Placement
		if scheduled {
			p := placement
			where = &p
		}
		out = append(out, courseSummary(course, where))
	}
	return out
}

func (s *TimetableService) validatePlacement(req dto.PlacementRequest) (timetable.Day, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid placement payload")
	}
	day, ok := timetable.ParseDay(req.Day)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", req.Day))
	}
	return day, nil
}

// commit persists grid and settings, then swaps them in. Callers hold mu.
func (s *TimetableService) commit(ctx context.Context, grid *timetable.Grid, settings models.TimetableSettings) error {
	settings.WeekCount = len(grid.Weeks())
	if err := s.store.SaveState(ctx, &settings, assignmentRows(grid)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save timetable")
	}
	s.grid = grid
	s.settings = settings
	s.publish()
	return nil
}

// assignmentRows flattens a grid into persisted rows in grid order.
func assignmentRows(grid *timetable.Grid) []models.ExamAssignment {
	cells := grid.Cells()
	rows := make([]models.ExamAssignment, len(cells))
	for i, cell := range cells {
		rows[i] = models.ExamAssignment{
			CourseID: cell.CourseID,
			Week:     cell.Week,
			Day:      string(cell.Day),
			SlotID:   cell.SlotID,
			Position: i,
		}
	}
	return rows
}

// placementsFrom converts persisted rows back into placements, counting rows
// whose day cannot be read.
func placementsFrom(rows []models.ExamAssignment) ([]timetable.Placement, int) {
	placements := make([]timetable.Placement, 0, len(rows))
	invalid := 0
	for _, row := range rows {
		day, ok := timetable.ParseDay(row.Day)
		if !ok {
			invalid++
			continue
		}
		placements = append(placements, timetable.Placement{
			CourseID: row.CourseID,
			Week:     row.Week,
			Day:      day,
			SlotID:   row.SlotID,
			Position: row.Position,
		})
	}
	return placements, invalid
}

func (s *TimetableService) snapshotLocked() TimetableSnapshot {
	return TimetableSnapshot{Grid: s.grid, Catalog: s.catalog, Settings: s.settings}
}

func (s *TimetableService) publish() {
	if s.metrics == nil {
		return
	}
	report := s.snapshotLocked().Conflicts()
	byKind := make(map[string]int, 3)
	for _, finding := range report.Findings {
		byKind[string(finding.Kind)]++
	}
	s.metrics.SetTimetableState(len(s.grid.ScheduledCourseIDs()), len(s.grid.Weeks()), byKind,
		string(timetable.ConflictOverlap), string(timetable.ConflictCapacity), string(timetable.ConflictOverload))
}

func (s *TimetableService) slotsFor(settings models.TimetableSettings) []timetable.TimeSlot {
	return timetable.BuildTimeSlots(settings.StartHour, settings.EndHour, settings.SlotIntervalMinutes)
}

// normalizeSettings clamps settings into the ranges the grid supports.
func (s *TimetableService) normalizeSettings(in models.TimetableSettings) models.TimetableSettings {
	out := in
	if out.SlotIntervalMinutes != 30 && out.SlotIntervalMinutes != 60 {
		out.SlotIntervalMinutes = 30
	}
	if out.StartHour < 0 || out.StartHour > 23 {
		out.StartHour = 8
	}
	if out.EndHour <= out.StartHour || out.EndHour > 24 {
		out.EndHour = out.StartHour + 9
		if out.EndHour > 24 {
			out.EndHour = 24
		}
	}
	if out.StudentsPerRoom < 1 {
		out.StudentsPerRoom = 1
	}
	if out.InvigilatorPoolSize < 1 {
		out.InvigilatorPoolSize = 1
	}
	if out.WeekCount < 1 {
		out.WeekCount = 1
	}
	if out.WeekCount > timetable.MaxWeeks {
		out.WeekCount = timetable.MaxWeeks
	}
	if out.StartDate.IsZero() {
		out.StartDate = s.now().Add(defaultStartOffset)
	}
	out.StartDate = timetable.AlignToMonday(out.StartDate)
	return out
}

func mapGridError(err error, week int) error {
	switch {
	case errors.Is(err, timetable.ErrInvalidStartSlot):
		return appErrors.ErrInvalidPlacement
	case errors.Is(err, timetable.ErrUnknownWeek):
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("week %d does not exist", week))
	case errors.Is(err, timetable.ErrUnknownDay):
		return appErrors.Clone(appErrors.ErrValidation, "exams run Monday to Friday")
	case errors.Is(err, timetable.ErrUnknownSlot):
		return appErrors.Clone(appErrors.ErrValidation, "unknown time slot")
	case errors.Is(err, timetable.ErrMaxWeeks):
		return appErrors.ErrWeekLimitReached
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "timetable update failed")
	}
}

func courseSummary(course *models.Course, scheduled *timetable.Placement) dto.CourseSummary {
	return dto.CourseSummary{
		ID:           course.ID,
		Code:         course.Code,
		Title:        course.Title,
		Sections:     nonNil(course.Sections),
		CRNs:         nonNil(course.CRNs),
		Instructors:  nonNil(course.Instructors),
		StudentCount: len(course.Students),
		Scheduled:    scheduled,
	}
}

func matchesCourse(course *models.Course, needle string) bool {
	if strings.Contains(strings.ToLower(course.Code), needle) || strings.Contains(strings.ToLower(course.Title), needle) {
		return true
	}
	for _, list := range [][]string{course.Sections, course.CRNs} {
		for _, v := range list {
			if strings.Contains(strings.ToLower(v), needle) {
				return true
			}
		}
	}
	return false
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
