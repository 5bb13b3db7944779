package timetable

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Placeholders generates the pool "Invigilator 01".."Invigilator NN".
func Placeholders(n int) []string {
	if n < 0 {
		n = 0
	}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Invigilator %02d", i+1)
	}
	return out
}

// Assignment staffs one room row. Empty names mean the pool ran out.
type Assignment struct {
	PrimaryOne string `json:"primaryOne"`
	PrimaryTwo string `json:"primaryTwo"`
	Backup     string `json:"backup"`
	RoomName   string `json:"roomName"`
}

// Usage counts how often a candidate was picked.
type Usage struct {
	Name    string `json:"name"`
	Primary int    `json:"primary"`
	Backup  int    `json:"backup"`
}

// LoadStats describes how evenly primary duty was spread.
type LoadStats struct {
	MeanPrimary   float64 `json:"meanPrimary"`
	StdDevPrimary float64 `json:"stdDevPrimary"`
	Spread        int     `json:"spread"`
}

// Roster is the outcome of one assignment run.
type Roster struct {
	Assignments []Assignment `json:"assignments"`
	Usage       []Usage      `json:"usage"`
	Stats       LoadStats    `json:"stats"`
}

type primaryCandidate struct {
	name      string
	primary   int
	roomUsage map[string]int
	order     int
}

type backupCandidate struct {
	name    string
	backup  int
	primary int
	order   int
}

// AssignInvigilators staffs each room row, in order, with two primaries and
// one backup. Primaries go to whoever has the fewest primary duties, then
// the fewest turns in a room of the same name, then pool order. Backups come
// from a separately counted pool and never repeat the row's primaries.
func AssignInvigilators(roomNames []string, pool []string) Roster {
	primaries := make([]*primaryCandidate, len(pool))
	backups := make([]*backupCandidate, len(pool))
	for i, name := range pool {
		primaries[i] = &primaryCandidate{name: name, roomUsage: make(map[string]int), order: i}
		backups[i] = &backupCandidate{name: name, order: i}
	}

	assignments := make([]Assignment, 0, len(roomNames))
	for _, room := range roomNames {
		excluded := make(map[string]struct{}, 2)
		row := Assignment{RoomName: room}

		if first := selectPrimary(primaries, room, excluded); first != nil {
			first.primary++
			first.roomUsage[room]++
			excluded[first.name] = struct{}{}
			row.PrimaryOne = first.name
		}
		if second := selectPrimary(primaries, room, excluded); second != nil {
			second.primary++
			second.roomUsage[room]++
			excluded[second.name] = struct{}{}
			row.PrimaryTwo = second.name
		}
		if backup := selectBackup(backups, excluded); backup != nil {
			backup.backup++
			row.Backup = backup.name
		}
		assignments = append(assignments, row)
	}

	usage := make([]Usage, len(pool))
	for i := range pool {
		usage[i] = Usage{Name: pool[i], Primary: primaries[i].primary, Backup: backups[i].backup}
	}
	return Roster{Assignments: assignments, Usage: usage, Stats: loadStats(usage)}
}

func selectPrimary(pool []*primaryCandidate, room string, excluded map[string]struct{}) *primaryCandidate {
	var best *primaryCandidate
	for _, c := range pool {
		if _, skip := excluded[c.name]; skip {
			continue
		}
		if best == nil || lessPrimary(c, best, room) {
			best = c
		}
	}
	return best
}

func lessPrimary(a, b *primaryCandidate, room string) bool {
	if a.primary != b.primary {
		return a.primary < b.primary
	}
	if a.roomUsage[room] != b.roomUsage[room] {
		return a.roomUsage[room] < b.roomUsage[room]
	}
	return a.order < b.order
}

// selectBackup ranks by backup count, then the backup pool's own primary
// counter, then pool order. That counter is never advanced, so ties fall
// through to pool order.
func selectBackup(pool []*backupCandidate, excluded map[string]struct{}) *backupCandidate {
	var best *backupCandidate
	for _, c := range pool {
		if _, skip := excluded[c.name]; skip {
			continue
		}
		if best == nil || lessBackup(c, best) {
			best = c
		}
	}
	return best
}

func lessBackup(a, b *backupCandidate) bool {
	if a.backup != b.backup {
		return a.backup < b.backup
	}
	if a.primary != b.primary {
		return a.primary < b.primary
	}
	return a.order < b.order
}

func loadStats(usage []Usage) LoadStats {
	if len(usage) == 0 {
		return LoadStats{}
	}
	counts := make([]float64, len(usage))
	for i, u := range usage {
		counts[i] = float64(u.Primary)
	}
	mean, std := stat.MeanStdDev(counts, nil)
	if len(counts) < 2 {
		std = 0
	}
	return LoadStats{
		MeanPrimary:   mean,
		StdDevPrimary: std,
		Spread:        int(floats.Max(counts) - floats.Min(counts)),
	}
}
