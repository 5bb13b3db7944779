package export

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterDataset() Dataset {
	return Dataset{
		Headers: []string{"CRN", "Course Code", "Student ID"},
		Rows: []map[string]string{
			{"CRN": "10001", "Course Code": "MATH101", "Student ID": "s001"},
			{"CRN": "10001, 10002", "Course Code": "MATH101", "Student ID": "s002"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	body, err := NewCSVExporter().Render(rosterDataset())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "CRN,Course Code,Student ID", lines[0])
	assert.Equal(t, `"10001, 10002",MATH101,s002`, lines[2])

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestCSVExporterRenderWorkbook(t *testing.T) {
	body, err := NewCSVExporter().RenderWorkbook([]Sheet{
		{Name: "Week 1 Invigilators", Data: rosterDataset()},
		{Name: "Week 1 Monday", Data: rosterDataset()},
	})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "Week 1 Invigilators.csv", zr.File[0].Name)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "CRN,Course Code,Student ID"))
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Week 10 Invigilator Pool", SheetName("Week 10 Invigilator Pool"))
	assert.Len(t, SheetName("Week 1 A Very Long Sheet Name That Overflows"), MaxSheetNameLength)
	assert.Equal(t, "a-b", SheetName("a/b"))
	assert.Equal(t, "Sheet", SheetName("  "))
}

func TestBundleRenamesDuplicates(t *testing.T) {
	body, err := Bundle([]File{{Name: "roster.pdf", Body: []byte("a")}, {Name: "roster.pdf", Body: []byte("b")}})
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "roster (1).pdf", zr.File[1].Name)

	assert.Equal(t, "Exam_Schedules_2026-10-15.zip", BundleName(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)))
}

func TestPDFExporterRenderSheets(t *testing.T) {
	rows := make([]map[string]string, 0, 120)
	for i := 0; i < 120; i++ {
		rows = append(rows, map[string]string{"CRN": "10001", "Course Code": "A very long course code label that must be clipped", "Student ID": "s"})
	}
	body, err := NewPDFExporter().RenderSheets([]Sheet{
		{Name: "Week 1 Invigilators", Data: rosterDataset()},
		{Name: "Week 1 Monday", Title: "Week 1 Monday", Data: Dataset{Headers: []string{"CRN", "Course Code", "Student ID"}, Rows: rows}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	_, err = NewPDFExporter().RenderSheets(nil)
	assert.Error(t, err)
}
