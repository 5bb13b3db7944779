package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-timetable-api/internal/models"
	"github.com/noah-isme/exam-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/exam-timetable-api/pkg/errors"
	"github.com/noah-isme/exam-timetable-api/pkg/export"
	"github.com/noah-isme/exam-timetable-api/pkg/storage"
)

// InvigilatorHeaders are the columns of the "Week N Invigilators" sheet.
var InvigilatorHeaders = []string{
	"CRN", "Course Code", "Course Title", "No of Students", "Date", "Time",
	"Instructor Name", "Invigilator room", "Invigilator1", "Invigilator2", "Backup Invigilator",
}

// StudentHeaders are the columns of each "Week N {Day}" sheet.
var StudentHeaders = []string{"CRN", "Code", "Title", "Student ID", "Student Name", "Class room", "Present/ Absent"}

var (
	invigilatorPoolHeaders = []string{"Invigilator", "Primary assignments", "Backup assignments"}
	roomPoolHeaders        = []string{"Room", "Assignments"}
)

type snapshotSource interface {
	Snapshot() TimetableSnapshot
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	RenderWorkbook(sheets []export.Sheet) ([]byte, error)
}

type pdfRenderer interface {
	RenderSheets(sheets []export.Sheet) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Filename     string
	Token        string
	URL          string
	Format       models.ExportFormat
	Weeks        []int
	ExpiresAt    time.Time
}

// ExportService renders week rosters and stores them behind signed links.
type ExportService struct {
	source  snapshotSource
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService. storage and signer may be
// nil for callers that only Build files locally.
func NewExportService(source snapshotSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		source:  source,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// WeekSheets lays a week roster out as the workbook tabs: invigilators,
// invigilator pool, room pool, then one student sheet per day.
func WeekSheets(roster timetable.WeekRoster) []export.Sheet {
	week := strconv.Itoa(roster.Week)
	sheets := make([]export.Sheet, 0, 3+len(roster.Days))

	invigilators := make([]map[string]string, len(roster.Rows))
	for i, row := range roster.Rows {
		var staff timetable.Assignment
		if i < len(roster.Assignments) {
			staff = roster.Assignments[i]
		}
		invigilators[i] = map[string]string{
			"CRN":                row.Room.CRNLabel(),
			"Course Code":        row.Room.CourseCodeLabel(),
			"Course Title":       row.Room.CourseTitleLabel(),
			"No of Students":     strconv.Itoa(len(row.Room.Students)),
			"Date":               row.Date,
			"Time":               row.TimeRange,
			"Instructor Name":    row.Room.InstructorLabel(),
			"Invigilator room":   row.Room.Name,
			"Invigilator1":       staff.PrimaryOne,
			"Invigilator2":       staff.PrimaryTwo,
			"Backup Invigilator": staff.Backup,
		}
	}
	sheets = append(sheets, export.Sheet{
		Name:  export.SheetName("Week " + week + " Invigilators"),
		Title: "Week " + week + " Invigilators",
		Data:  export.Dataset{Headers: InvigilatorHeaders, Rows: invigilators},
	})

	pool := make([]map[string]string, len(roster.Pool))
	for i, usage := range roster.Pool {
		pool[i] = map[string]string{
			"Invigilator":         usage.Name,
			"Primary assignments": strconv.Itoa(usage.Primary),
			"Backup assignments":  strconv.Itoa(usage.Backup),
		}
	}
	sheets = append(sheets, export.Sheet{
		Name:  export.SheetName("Week " + week + " Invigilator Pool"),
		Title: "Week " + week + " Invigilator Pool",
		Data:  export.Dataset{Headers: invigilatorPoolHeaders, Rows: pool},
	})

	rooms := make([]map[string]string, len(roster.RoomPool))
	for i, usage := range roster.RoomPool {
		rooms[i] = map[string]string{"Room": usage.Room, "Assignments": strconv.Itoa(usage.Assignments)}
	}
	sheets = append(sheets, export.Sheet{
		Name:  export.SheetName("Week " + week + " Room Pool"),
		Title: "Week " + week + " Room Pool",
		Data:  export.Dataset{Headers: roomPoolHeaders, Rows: rooms},
	})

	for _, day := range roster.Days {
		rows := make([]map[string]string, len(day.Entries))
		for i, entry := range day.Entries {
			rows[i] = map[string]string{
				"CRN":             entry.CRN,
				"Code":            entry.CourseCode,
				"Title":           entry.Title,
				"Student ID":      entry.StudentID,
				"Student Name":    entry.StudentName,
				"Class room":      entry.RoomName,
				"Present/ Absent": "",
			}
		}
		sheets = append(sheets, export.Sheet{
			Name:  export.SheetName("Week " + week + " " + string(day.Day)),
			Title: fmt.Sprintf("Week %s %s", week, day.Date),
			Data:  export.Dataset{Headers: StudentHeaders, Rows: rows},
		})
	}
	return sheets
}

// Build renders one file per requested week that seats at least one
// student. Empty weeks means every week. Several files are zipped into one
// bundle.
func (s *ExportService) Build(snapshot TimetableSnapshot, format models.ExportFormat, weeks []int) (export.File, []int, error) {
	selected, err := selectWeeks(snapshot.Grid, weeks)
	if err != nil {
		return export.File{}, nil, err
	}

	files := make([]export.File, 0, len(selected))
	exported := make([]int, 0, len(selected))
	for _, week := range selected {
		roster, ok := snapshot.Roster(week)
		if !ok {
			continue
		}
		sheets := WeekSheets(roster)
		var body []byte
		var ext string
		switch format {
		case models.ExportFormatCSV:
			body, err = s.csv.RenderWorkbook(sheets)
			ext = "zip"
		case models.ExportFormatPDF:
			body, err = s.pdf.RenderSheets(sheets)
			ext = "pdf"
		default:
			return export.File{}, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
		}
		if err != nil {
			return export.File{}, nil, fmt.Errorf("render week %d: %w", week, err)
		}
		files = append(files, export.File{Name: fmt.Sprintf("Week_%d_Exam_Schedule.%s", week, ext), Body: body})
		exported = append(exported, week)
	}

	switch len(files) {
	case 0:
		return export.File{}, nil, appErrors.ErrNothingToExport
	case 1:
		return files[0], exported, nil
	}
	bundle, err := export.Bundle(files)
	if err != nil {
		return export.File{}, nil, err
	}
	return export.File{Name: export.BundleName(s.now()), Body: bundle}, exported, nil
}

// Generate renders the job's export from the timetable frozen at request time,
// falling back to the live one, and stores it under a signed download token.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.ErrExportUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snapshot := s.source.Snapshot().Thaw(job.Params.Timetable)
	file, weeks, err := s.Build(snapshot, job.Params.Format, job.Params.Weeks)
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(job.ID+"/"+file.Name, file.Body)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Sugar().Infow("roster export stored", "job_id", job.ID, "file", relPath, "weeks", weeks, "bytes", len(file.Body))
	return &ExportResult{
		RelativePath: relPath,
		Filename:     file.Name,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		Weeks:        weeks,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	if s.signer == nil {
		return "", "", time.Time{}, storage.ErrInvalidToken
	}
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, defaulting to the configured
// result TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if s.storage == nil {
		return nil, nil
	}
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func selectWeeks(grid *timetable.Grid, requested []int) ([]int, error) {
	if len(requested) == 0 {
		return grid.Weeks(), nil
	}
	seen := make(map[int]struct{}, len(requested))
	out := make([]int, 0, len(requested))
	for _, week := range requested {
		if !grid.HasWeek(week) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("week %d does not exist", week))
		}
		if _, dup := seen[week]; dup {
			continue
		}
		seen[week] = struct{}{}
		out = append(out, week)
	}
	sort.Ints(out)
	return out, nil
}
