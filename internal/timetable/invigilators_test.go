package timetable

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"Invigilator 01", "Invigilator 02", "Invigilator 03"}, Placeholders(3))
	assert.Equal(t, "Invigilator 15", Placeholders(15)[14])
	assert.Empty(t, Placeholders(-1))
}

func TestAssignInvigilatorsRotatesPool(t *testing.T) {
	roster := AssignInvigilators([]string{"Room 1", "Room 2"}, []string{"A", "B", "C"})

	require.Len(t, roster.Assignments, 2)
	assert.Equal(t, Assignment{PrimaryOne: "A", PrimaryTwo: "B", Backup: "C", RoomName: "Room 1"}, roster.Assignments[0])
	assert.Equal(t, Assignment{PrimaryOne: "C", PrimaryTwo: "A", Backup: "B", RoomName: "Room 2"}, roster.Assignments[1])

	assert.Equal(t, []Usage{
		{Name: "A", Primary: 2, Backup: 0},
		{Name: "B", Primary: 1, Backup: 1},
		{Name: "C", Primary: 1, Backup: 1},
	}, roster.Usage)
	assert.InDelta(t, 4.0/3.0, roster.Stats.MeanPrimary, 1e-9)
	assert.Equal(t, 1, roster.Stats.Spread)
}

func TestAssignInvigilatorsBalancesLoad(t *testing.T) {
	rooms := make([]string, 10)
	for i := range rooms {
		rooms[i] = fmt.Sprintf("Room %d", i%3+1)
	}
	roster := AssignInvigilators(rooms, Placeholders(5))

	for _, row := range roster.Assignments {
		assert.NotEqual(t, row.PrimaryOne, row.PrimaryTwo)
		assert.NotEqual(t, row.PrimaryOne, row.Backup)
		assert.NotEqual(t, row.PrimaryTwo, row.Backup)
	}
	assert.LessOrEqual(t, roster.Stats.Spread, 1)

	total := 0
	for _, u := range roster.Usage {
		total += u.Primary
	}
	assert.Equal(t, 20, total)
}

func TestAssignInvigilatorsShortPool(t *testing.T) {
	roster := AssignInvigilators([]string{"Room 1"}, []string{"Solo"})
	assert.Equal(t, Assignment{PrimaryOne: "Solo", RoomName: "Room 1"}, roster.Assignments[0])

	empty := AssignInvigilators([]string{"Room 1"}, nil)
	assert.Equal(t, Assignment{RoomName: "Room 1"}, empty.Assignments[0])
	assert.Empty(t, empty.Usage)
	assert.Equal(t, LoadStats{}, empty.Stats)
}
