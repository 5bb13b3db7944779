package timetable

import (
	"sort"
	"strings"
	"time"
)

// RoomRow is one staffed room of one time block.
type RoomRow struct {
	Week      int    `json:"week"`
	Day       Day    `json:"day"`
	Date      string `json:"date"`
	SlotID    string `json:"slotId"`
	TimeRange string `json:"timeRange"`
	Room      Room   `json:"room"`
}

// RosterEntry is one student line of a day roster.
type RosterEntry struct {
	CRN         string `json:"crn"`
	CourseCode  string `json:"courseCode"`
	Title       string `json:"title"`
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	RoomName    string `json:"roomName"`
	SlotID      string `json:"slotId"`
}

// DayRoster lists every seated student of one day.
type DayRoster struct {
	Day     Day           `json:"day"`
	Date    string        `json:"date"`
	Entries []RosterEntry `json:"entries"`
}

// RoomUsage counts the rows staffed in rooms of one name.
type RoomUsage struct {
	Room        string `json:"room"`
	Assignments int    `json:"assignments"`
}

// WeekRoster is everything an export needs for one week. Rows and
// Assignments are aligned by index.
type WeekRoster struct {
	Week        int          `json:"week"`
	StartDate   time.Time    `json:"startDate"`
	Rows        []RoomRow    `json:"rows"`
	Assignments []Assignment `json:"assignments"`
	Days        []DayRoster  `json:"days"`
	Pool        []Usage      `json:"pool"`
	Stats       LoadStats    `json:"stats"`
	RoomPool    []RoomUsage  `json:"roomPool"`
}

// RosterOptions configures BuildWeekRoster.
type RosterOptions struct {
	StudentsPerRoom int
	Invigilators    []string
	StartDate       time.Time
}

// BuildWeekRoster packs every occupied cell of a week into rooms, staffs the
// rooms and builds the per-day student lists. It reports false when the week
// seats nobody.
func BuildWeekRoster(g *Grid, catalog *Catalog, week int, opts RosterOptions) (WeekRoster, bool) {
	roster := WeekRoster{Week: week, StartDate: DayDate(opts.StartDate, week, Monday)}
	if !g.HasWeek(week) {
		return roster, false
	}

	type sortableEntry struct {
		minutes int
		entry   RosterEntry
	}
	perDay := make(map[Day][]sortableEntry)
	for _, day := range Days {
		date := FormatDate(DayDate(opts.StartDate, week, day))
		for _, slot := range g.slots {
			ids := g.Courses(week, day, slot.ID)
			if len(ids) == 0 {
				continue
			}
			timeRange := FormatSlotRange(slot.ID)
			rooms := PackRooms(catalog.Resolve(ids), catalog.Directory(), opts.StudentsPerRoom)
			for _, room := range rooms {
				roster.Rows = append(roster.Rows, RoomRow{
					Week:      week,
					Day:       day,
					Date:      date,
					SlotID:    slot.ID,
					TimeRange: timeRange,
					Room:      room,
				})
				for _, st := range room.Students {
					title := timeRange
					if st.CourseTitle != "" {
						title = st.CourseTitle + " (" + timeRange + ")"
					}
					perDay[day] = append(perDay[day], sortableEntry{
						minutes: ParseSlotMinutes(slot.ID),
						entry: RosterEntry{
							CRN:         st.CRN,
							CourseCode:  st.CourseCode,
							Title:       title,
							StudentID:   st.ID,
							StudentName: st.Name,
							RoomName:    room.Name,
							SlotID:      slot.ID,
						},
					})
				}
			}
		}
	}
	if len(roster.Rows) == 0 {
		return roster, false
	}

	roomNames := make([]string, len(roster.Rows))
	for i, row := range roster.Rows {
		roomNames[i] = row.Room.Name
	}
	staffing := AssignInvigilators(roomNames, opts.Invigilators)
	roster.Assignments = staffing.Assignments
	roster.Pool = staffing.Usage
	roster.Stats = staffing.Stats
	roster.RoomPool = roomPool(roomNames)

	for _, day := range Days {
		entries := perDay[day]
		if len(entries) == 0 {
			continue
		}
		sort.SliceStable(entries, func(i, j int) bool {
			a, b := entries[i], entries[j]
			if a.minutes != b.minutes {
				return a.minutes < b.minutes
			}
			if a.entry.RoomName != b.entry.RoomName {
				return a.entry.RoomName < b.entry.RoomName
			}
			if a.entry.CourseCode != b.entry.CourseCode {
				return a.entry.CourseCode < b.entry.CourseCode
			}
			return a.entry.StudentID < b.entry.StudentID
		})
		dr := DayRoster{Day: day, Date: FormatDate(DayDate(opts.StartDate, week, day)), Entries: make([]RosterEntry, len(entries))}
		for i, e := range entries {
			dr.Entries[i] = e.entry
		}
		roster.Days = append(roster.Days, dr)
	}
	return roster, true
}

func roomPool(roomNames []string) []RoomUsage {
	counts := make(map[string]int)
	names := make([]string, 0)
	for _, name := range roomNames {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if _, seen := counts[name]; !seen {
			names = append(names, name)
		}
		counts[name]++
	}
	sort.SliceStable(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	out := make([]RoomUsage, len(names))
	for i, name := range names {
		out[i] = RoomUsage{Room: name, Assignments: counts[name]}
	}
	return out
}
