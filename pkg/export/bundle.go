package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"time"
)

// MaxSheetNameLength mirrors the spreadsheet tab name limit.
const MaxSheetNameLength = 31

// File is one named artifact inside a bundle.
type File struct {
	Name string
	Body []byte
}

// SheetName truncates a tab name and strips characters spreadsheet tools
// refuse.
func SheetName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '?', '*', '[', ']', ':':
			return '-'
		}
		return r
	}, strings.TrimSpace(name))
	if cleaned == "" {
		cleaned = "Sheet"
	}
	runes := []rune(cleaned)
	if len(runes) > MaxSheetNameLength {
		runes = runes[:MaxSheetNameLength]
	}
	return string(runes)
}

// BundleName is the archive name used when several exports are downloaded
// together.
func BundleName(now time.Time) string {
	return fmt.Sprintf("Exam_Schedules_%s.zip", now.Format("2006-01-02"))
}

// Bundle zips files in order. Duplicate names get a numeric suffix.
func Bundle(files []File) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]int, len(files))
	for _, f := range files {
		name := f.Name
		if n := seen[name]; n > 0 {
			ext := ""
			if dot := strings.LastIndex(name, "."); dot > 0 {
				ext = name[dot:]
				name = name[:dot]
			}
			name = fmt.Sprintf("%s (%d)%s", name, n, ext)
		}
		seen[f.Name]++
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := w.Write(f.Body); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close bundle: %w", err)
	}
	return buf.Bytes(), nil
}
