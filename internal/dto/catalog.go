package dto

import "github.com/noah-isme/exam-timetable-api/internal/models"

// ImportResponse summarises an enrollment upload.
type ImportResponse struct {
	Import   models.CatalogImport `json:"import"`
	Courses  int                  `json:"courses"`
	Students int                  `json:"students"`
	Rows     int                  `json:"rows"`
	Skipped  int                  `json:"skippedRows"`
}
