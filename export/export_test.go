package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"schoolhub-server-go/models"
	"schoolhub-server-go/stats"
)

func ptr[T any](v T) *T { return &v }

func readSheet(t *testing.T, buf *bytes.Buffer, name string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(name)
	require.NoError(t, err)
	return rows
}

func TestCellText(t *testing.T) {
	assert.Equal(t, "", CellText(stats.Cell{}))
	assert.Equal(t, "present 8.5 HW", CellText(stats.Cell{Recorded: true, Status: models.StatusPresent, Score: ptr(8.5), Homework: ptr(true)}))
	assert.Equal(t, "late no HW", CellText(stats.Cell{Recorded: true, Status: models.StatusLate, Homework: ptr(false)}))
}

func TestGradeBook(t *testing.T) {
	class := models.Clazz{ID: "c1", Name: "Chemistry"}
	students := []models.Student{{ID: "bob", Name: "Bob"}, {ID: "alice", Name: "Alice"}}
	sessions := []models.AttendanceSession{
		{ID: "s2", Date: "2026-09-08", Records: map[string]models.AttendanceRecord{
			"alice": {Status: models.StatusPresent, Score: ptr(9.0)},
			"bob":   {Status: models.StatusAbsent},
		}},
		{ID: "s1", Date: "2026-09-01", Topic: "Atoms", Records: map[string]models.AttendanceRecord{
			"alice": {Status: models.StatusPresent, Score: ptr(7.0)},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, GradeBook(&buf, stats.BuildGradeBook(class, students, sessions)))

	rows := readSheet(t, &buf, "Grade Book")
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Student", "2026-09-01 Atoms", "2026-09-08", "Attended"}, rows[0][:4])
	assert.Equal(t, []string{"Alice", "present 7", "present 9", "2"}, rows[1][:4])
	assert.Equal(t, "100.0%", rows[1][7])
	assert.Equal(t, "8", rows[1][8])
	assert.Equal(t, "Bob", rows[2][0])
	assert.Equal(t, "", rows[2][1])
	assert.Equal(t, "absent", rows[2][2])
	assert.Equal(t, "Class", rows[3][0])
}

func TestSession(t *testing.T) {
	session := models.AttendanceSession{ID: "s1", Date: "2026-09-01", Records: map[string]models.AttendanceRecord{
		"alice": {Status: models.StatusLate, Homework: ptr(true), Comment: "bus"},
		"gone":  {Status: models.StatusPresent},
	}}
	students := []models.Student{{ID: "alice", Name: "Alice"}, {ID: "bob", Name: "Bob"}}

	var buf bytes.Buffer
	require.NoError(t, Session(&buf, models.Clazz{Name: "Chemistry"}, session, students))
	rows := readSheet(t, &buf, "Attendance")
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"alice", "Alice", "late", "", "yes", "bus"}, rows[1])
	assert.Equal(t, []string{"bob", "Bob"}, rows[2])
	assert.Equal(t, "gone", rows[3][0])
}

func TestReceipts(t *testing.T) {
	paid := time.Date(2026, 9, 30, 9, 0, 0, 0, time.UTC)
	tuition := []models.TuitionReceipt{
		{Number: "HP-202609-0001", StudentID: "alice", ClassID: "c1", Month: "2026-09", Sessions: 3, UnitPrice: 100, Amount: 300, Paid: true, PaidAt: &paid},
		{Number: "HP-202609-0002", StudentID: "ghost", ClassID: "c1", Month: "2026-09", Sessions: 1, UnitPrice: 100, Amount: 100},
	}
	salary := []models.SalaryReceipt{{Number: "SL-202609-0001", TeacherID: "t1", Month: "2026-09", Sessions: 4, Rate: 200, Amount: 800}}
	names := Names{
		Students: map[string]string{"alice": "Alice"},
		Classes:  map[string]string{"c1": "Chemistry"},
		Teachers: map[string]string{"t1": "Linh"},
	}

	var buf bytes.Buffer
	require.NoError(t, Receipts(&buf, "2026-09", tuition, salary, names))
	data := buf.Bytes()

	rows := readSheet(t, bytes.NewBuffer(data), "Tuition 2026-09")
	require.Len(t, rows, 4)
	assert.Equal(t, "Alice", rows[1][1])
	assert.Equal(t, "Chemistry", rows[1][2])
	assert.Equal(t, "2026-09-30 09:00", rows[1][9])
	assert.Equal(t, "ghost", rows[2][1])
	assert.Equal(t, "400", rows[3][7])
	assert.Equal(t, "collected 300.00", rows[3][8])

	rows = readSheet(t, bytes.NewBuffer(data), "Salary 2026-09")
	require.Len(t, rows, 3)
	assert.Equal(t, "Linh", rows[1][1])
	assert.Equal(t, "800", rows[2][7])
}

func TestRoster(t *testing.T) {
	students := []models.Student{{ID: "s1", Name: "Alice", ParentPhone: "0901", ClassIDs: []string{"c1", "c2"}}}
	var buf bytes.Buffer
	require.NoError(t, Roster(&buf, students, map[string]string{"c1": "Chemistry"}))
	rows := readSheet(t, &buf, "Students")
	require.Len(t, rows, 2)
	assert.Equal(t, "Chemistry, c2", rows[1][6])
	assert.Equal(t, "0901", rows[1][5])
}
