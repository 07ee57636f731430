package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/xuri/excelize/v2"

	"schoolhub-server-go/models"
)

// ImportResult reports what an Excel import did
type ImportResult struct {
	ClassID  string   `json:"classId"`
	Created  int      `json:"created"`  // new students
	Enrolled int      `json:"enrolled"` // students enrolled in the class (new and existing)
	Skipped  []string `json:"skipped"`  // one message per skipped row
}

// columns recognised in the header row (lowercased, spaces removed)
var importHeaders = map[string]string{
	"id":          "id",
	"studentid":   "id",
	"name":        "name",
	"fullname":    "name",
	"studentname": "name",
	"phone":       "phone",
	"parent":      "parentName",
	"parentname":  "parentName",
	"parentphone": "parentPhone",
	"birthdate":   "birthDate",
	"dob":         "birthDate",
	"note":        "note",
	"notes":       "note",
}

// headerColumns maps field names to column indexes. Without a recognisable
// header the legacy layout is assumed: column A is the ID, column B the name.
func headerColumns(header []string) (map[string]int, bool) {
	cols := map[string]int{}
	for i, h := range header {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "")
		if field, ok := importHeaders[key]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["name"]; ok {
		return cols, true
	}
	return map[string]int{"id": 0, "name": 1}, false
}

func cell(row []string, cols map[string]int, field string) string {
	i, ok := cols[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// --- Excel Import ---

// ImportStudentsFromExcel reads the first sheet of a workbook and enrolls every
// row into the class. Rows with an ID of an existing student only enroll them;
// other rows create the student first.
func (s *RedisService) ImportStudentsFromExcel(ctx context.Context, file io.Reader, classID string) (*ImportResult, error) {
	exists, err := s.ClassExists(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to check class existence before import: %w", err)
	}
	if !exists {
		log.Printf("Import target class %s does not exist. Creating it.", classID)
		if _, err := s.AddClass(ctx, models.Clazz{ID: classID, Name: "Imported Class " + classID}, true); err != nil {
			return nil, fmt.Errorf("target class %s does not exist and failed to create it: %w", classID, err)
		}
	}

	f, err := excelize.OpenReader(file)
	if err != nil {
		log.Printf("Error opening Excel reader: %v", err)
		return nil, fmt.Errorf("%w: failed to open excel file: %v", ErrInvalid, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing excel file: %v", err)
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("%w: excel file does not contain any sheets", ErrInvalid)
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}

	result := &ImportResult{ClassID: classID, Skipped: []string{}}
	if len(rows) == 0 {
		return result, nil
	}
	cols, named := headerColumns(rows[0])
	if !named {
		log.Printf("No recognised header in sheet %s, using ID/Name column layout", sheetName)
	}

	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		line := i + 1
		id, name := cell(row, cols, "id"), cell(row, cols, "name")

		if id != "" {
			existing, err := s.GetStudentByID(ctx, id)
			if err != nil {
				return result, err
			}
			if existing != nil {
				if err := s.Enroll(ctx, classID, id); err != nil {
					result.Skipped = append(result.Skipped, fmt.Sprintf("row %d: %v", line, err))
					continue
				}
				result.Enrolled++
				continue
			}
		}
		if name == "" {
			if strings.Join(row, "") != "" {
				result.Skipped = append(result.Skipped, fmt.Sprintf("row %d: missing name", line))
			}
			continue
		}

		student, err := s.AddStudent(ctx, models.Student{
			ID:          id,
			Name:        name,
			Phone:       cell(row, cols, "phone"),
			ParentName:  cell(row, cols, "parentName"),
			ParentPhone: cell(row, cols, "parentPhone"),
			BirthDate:   cell(row, cols, "birthDate"),
			Note:        cell(row, cols, "note"),
		})
		if err != nil {
			if errors.Is(err, ErrInvalid) || errors.Is(err, ErrConflict) {
				result.Skipped = append(result.Skipped, fmt.Sprintf("row %d: %v", line, err))
				continue
			}
			return result, err
		}
		result.Created++
		if err := s.Enroll(ctx, classID, student.ID); err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("row %d: %v", line, err))
			continue
		}
		result.Enrolled++
	}

	log.Printf("Imported %d new students, enrolled %d into class %s (%d rows skipped)",
		result.Created, result.Enrolled, classID, len(result.Skipped))
	return result, nil
}
