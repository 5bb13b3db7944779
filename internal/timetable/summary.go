package timetable

// InvigilatorsPerRoom is the number of primary invigilators staffed per room.
const InvigilatorsPerRoom = 2

// SlotSummary is the derived resource need of one cell.
type SlotSummary struct {
	StudentCount     int  `json:"studentCount"`
	RoomCount        int  `json:"roomCount"`
	InvigilatorCount int  `json:"invigilatorCount"`
	IsStartSlot      bool `json:"isStartSlot"`
}

// WeekSummary maps day and slot id to the cell summary.
type WeekSummary map[Day]map[string]SlotSummary

// Overview aggregates the whole grid.
type Overview struct {
	TotalCourses      int `json:"totalCourses"`
	TotalStudents     int `json:"totalStudents"`
	TotalRooms        int `json:"totalRooms"`
	TotalInvigilators int `json:"totalInvigilators"`
}

// RoomsNeeded is ceil(students/perRoom), with perRoom floored at 1.
func RoomsNeeded(students, perRoom int) int {
	if students <= 0 {
		return 0
	}
	if perRoom < 1 {
		perRoom = 1
	}
	return (students + perRoom - 1) / perRoom
}

// SummarizeWeek computes the summary of every cell of a week. Continuation
// cells and cells of unknown weeks report zeros.
func SummarizeWeek(g *Grid, catalog *Catalog, week int, studentsPerRoom int) WeekSummary {
	out := make(WeekSummary, len(Days))
	for _, d := range Days {
		cells := make(map[string]SlotSummary, len(g.slots))
		for _, s := range g.slots {
			courses := g.Courses(week, d, s.ID)
			students := uniqueStudents(catalog.Resolve(courses))
			rooms := RoomsNeeded(len(students), studentsPerRoom)
			cells[s.ID] = SlotSummary{
				StudentCount:     len(students),
				RoomCount:        rooms,
				InvigilatorCount: rooms * InvigilatorsPerRoom,
				IsStartSlot:      len(courses) > 0,
			}
		}
		out[d] = cells
	}
	return out
}

// Summarize totals scheduled courses, distinct students, rooms and
// invigilators across every week.
func Summarize(g *Grid, catalog *Catalog, studentsPerRoom int) Overview {
	scheduled := make(map[string]struct{})
	students := make(map[string]struct{})
	rooms := 0
	for _, w := range g.Weeks() {
		for _, d := range Days {
			for _, s := range g.slots {
				courses := catalog.Resolve(g.Courses(w, d, s.ID))
				for _, c := range courses {
					scheduled[c.ID] = struct{}{}
				}
				cellStudents := uniqueStudents(courses)
				for id := range cellStudents {
					students[id] = struct{}{}
				}
				rooms += RoomsNeeded(len(cellStudents), studentsPerRoom)
			}
		}
	}
	return Overview{
		TotalCourses:      len(scheduled),
		TotalStudents:     len(students),
		TotalRooms:        rooms,
		TotalInvigilators: rooms * InvigilatorsPerRoom,
	}
}

// OccupiedSlots returns the slot ids of a week that hold a start or a
// continuation on any day.
func OccupiedSlots(g *Grid, week int) []string {
	out := make([]string, 0)
	for i, s := range g.slots {
		for _, d := range Days {
			if len(g.Courses(week, d, s.ID)) > 0 {
				out = append(out, s.ID)
				break
			}
			if i > 0 && len(g.Courses(week, d, g.slots[i-1].ID)) > 0 {
				out = append(out, s.ID)
				break
			}
		}
	}
	return out
}
