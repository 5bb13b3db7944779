package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/exam-timetable-api/internal/ingest"
	"github.com/noah-isme/exam-timetable-api/internal/models"
	"github.com/noah-isme/exam-timetable-api/internal/service"
	"github.com/noah-isme/exam-timetable-api/internal/timetable"
)

// planInputs are the flags shared by check and roster.
type planInputs struct {
	enrollments  string
	plan         string
	interval     int
	startHour    int
	endHour      int
	perRoom      int
	invigilators int
	startDate    string
}

func (p *planInputs) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&p.enrollments, "enrollments", "e", "", "enrollment CSV export")
	flags.StringVarP(&p.plan, "plan", "p", "", "placement plan CSV (course_id,week,day,slot)")
	flags.IntVar(&p.interval, "interval", 0, "slot interval in minutes (30 or 60)")
	flags.IntVar(&p.startHour, "start-hour", -1, "first hour of the exam day")
	flags.IntVar(&p.endHour, "end-hour", 0, "hour the exam day ends")
	flags.IntVar(&p.perRoom, "per-room", 0, "students per room")
	flags.IntVar(&p.invigilators, "invigilators", 0, "invigilator pool size")
	flags.StringVar(&p.startDate, "start-date", "", "first exam Monday (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("enrollments")
	_ = cmd.MarkFlagRequired("plan")
}

// settings merges explicit flags over the configured timetable defaults.
func (p *planInputs) settings(a *app) (models.TimetableSettings, error) {
	defaults := a.cfg.Timetable
	out := models.TimetableSettings{
		SlotIntervalMinutes: pick(p.interval, defaults.SlotIntervalMinutes),
		StartHour:           defaults.StartHour,
		EndHour:             pick(p.endHour, defaults.EndHour),
		StudentsPerRoom:     pick(p.perRoom, defaults.StudentsPerRoom),
		InvigilatorPoolSize: pick(p.invigilators, defaults.InvigilatorPoolSize),
		WeekCount:           1,
	}
	if p.startHour >= 0 {
		out.StartHour = p.startHour
	}
	raw := p.startDate
	if raw == "" {
		raw = defaults.StartDate
	}
	if raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return out, fmt.Errorf("invalid start date %q: %w", raw, err)
		}
		out.StartDate = date
	}
	return out, nil
}

// loadedPlan is the result of reading both input files.
type loadedPlan struct {
	snapshot service.TimetableSnapshot
	rows     int
	skipped  int
	problems []ingest.PlanError
	dropped  []timetable.Placement
}

func (p *planInputs) load(a *app) (*loadedPlan, error) {
	settings, err := p.settings(a)
	if err != nil {
		return nil, err
	}

	enrollments, err := os.Open(p.enrollments)
	if err != nil {
		return nil, fmt.Errorf("open enrollments: %w", err)
	}
	defer enrollments.Close()
	parsed, err := ingest.ParseEnrollments(enrollments)
	if err != nil {
		return nil, err
	}

	planFile, err := os.Open(p.plan)
	if err != nil {
		return nil, fmt.Errorf("open plan: %w", err)
	}
	defer planFile.Close()
	placements, problems, err := ingest.ParsePlan(planFile)
	if err != nil {
		return nil, err
	}

	snapshot, dropped := service.BuildSnapshot(models.Catalog{Courses: parsed.Courses, Directory: parsed.Directory}, settings, placements)
	for _, d := range dropped {
		a.logger.Sugar().Warnw("placement skipped", "course", d.CourseID, "week", d.Week, "day", d.Day, "slot", d.SlotID)
	}
	return &loadedPlan{
		snapshot: snapshot,
		rows:     parsed.Rows,
		skipped:  parsed.Skipped,
		problems: problems,
		dropped:  dropped,
	}, nil
}

func pick(flag, fallback int) int {
	if flag > 0 {
		return flag
	}
	return fallback
}
