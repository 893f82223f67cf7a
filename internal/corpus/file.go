package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/faqrag/internal/models"
)

// FileSource reads records from a local .json, .yaml/.yml or .xlsx file.
type FileSource struct {
	path string
}

// NewFileSource creates a file source for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns the file path.
func (f *FileSource) Name() string {
	return f.path
}

// Load reads the file. JSON and YAML files hold a list of {question, answer} objects;
// spreadsheets use the first sheet with a header row naming the columns.
func (f *FileSource) Load(ctx context.Context) ([]models.FAQRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := f.load()
	if err != nil {
		return nil, &SourceError{Source: f.path, Err: err}
	}
	return records, nil
}

func (f *FileSource) load() ([]models.FAQRecord, error) {
	ext := strings.ToLower(filepath.Ext(f.path))
	if ext == ".xlsx" {
		return readSpreadsheet(f.path)
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	var records []models.FAQRecord
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported corpus file type: %s", ext)
	}
	return records, nil
}

func readSpreadsheet(path string) ([]models.FAQRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	qCol, aCol := -1, -1
	for i, cell := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "question", "soru":
			qCol = i
		case "answer", "cevap":
			aCol = i
		}
	}
	if qCol < 0 || aCol < 0 {
		return nil, fmt.Errorf("sheet %q needs question and answer header columns", sheets[0])
	}
	records := make([]models.FAQRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, models.FAQRecord{
			Question: cellAt(row, qCol),
			Answer:   cellAt(row, aCol),
		})
	}
	return records, nil
}

// cellAt tolerates short rows; GetRows trims trailing empty cells.
func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
