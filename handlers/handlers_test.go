package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"schoolhub-server-go/auth"
	"schoolhub-server-go/config"
	"schoolhub-server-go/db"
	"schoolhub-server-go/export"
	"schoolhub-server-go/models"
	"schoolhub-server-go/receipt"
)

type testServer struct {
	router  *gin.Engine
	service *db.RedisService
	signer  *auth.Signer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	service := db.NewRedisService(client)
	signer, err := auth.NewSigner("test-secret", time.Hour)
	require.NoError(t, err)
	cfg := &config.Config{SchoolName: "Test School", CORSOrigins: []string{"*"}}
	return &testServer{
		router:  SetupRouter(NewAPIHandler(service, signer, cfg)),
		service: service,
		signer:  signer,
	}
}

// account creates a user and returns a bearer token for it
func (s *testServer) account(t *testing.T, user models.User) string {
	t.Helper()
	hash, err := auth.HashPassword("secret1")
	require.NoError(t, err)
	user.PasswordHash = hash
	created, err := s.service.CreateUser(context.Background(), user)
	require.NoError(t, err)
	token, _, err := s.signer.Issue(*created)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// school sets up two teachers with one class each and a student in the math class
func (s *testServer) school(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, teacher := range []models.Teacher{
		{ID: "T1", Name: "Ms. Math", SalaryPerSession: 200},
		{ID: "T2", Name: "Mr. English", SalaryPerSession: 180},
	} {
		_, err := s.service.AddTeacher(ctx, teacher)
		require.NoError(t, err)
	}
	for _, clazz := range []models.Clazz{
		{ID: "MATH", Name: "Math 7", TeacherID: "T1", Room: "A1", TuitionPerSession: 100,
			Schedule: []models.ScheduleSlot{{Day: models.Monday, Start: "17:00", End: "18:30"}}},
		{ID: "ENG", Name: "English", TeacherID: "T2", Room: "B2",
			Schedule: []models.ScheduleSlot{{Day: models.Tuesday, Start: "17:00", End: "18:30"}}},
	} {
		_, err := s.service.AddClass(ctx, clazz, false)
		require.NoError(t, err)
	}
	for _, id := range []string{"S1", "S2"} {
		_, err := s.service.AddStudent(ctx, models.Student{ID: id, Name: "Student " + id})
		require.NoError(t, err)
	}
	require.NoError(t, s.service.Enroll(ctx, "MATH", "S1"))
	require.NoError(t, s.service.Enroll(ctx, "ENG", "S2"))
}

func TestPing(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["redis"])
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.account(t, models.User{Username: "Admin", Role: models.RoleAdmin})

	w := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"username": "admin", "password": "wrong-pw"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"username": "admin", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}](t, w)
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, models.RoleAdmin, body.User.Role)
	assert.NotContains(t, w.Body.String(), "passwordHash")

	w = s.do(t, http.MethodGet, "/api/me", body.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	s.school(t)
	teacher := s.account(t, models.User{Username: "t1", Role: models.RoleTeacher, TeacherID: "T1"})

	tests := []struct {
		name  string
		token string
		path  string
		want  int
	}{
		{name: "no token", path: "/api/classes", want: http.StatusUnauthorized},
		{name: "garbage token", token: "not-a-jwt", path: "/api/classes", want: http.StatusUnauthorized},
		{name: "teacher on admin route", token: teacher, path: "/api/classes", want: http.StatusForbidden},
		{name: "teacher on parent route", token: teacher, path: "/api/parent/children", want: http.StatusForbidden},
		{name: "teacher on own classes", token: teacher, path: "/api/teacher/classes", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, tt.path, tt.token, nil)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestDeletedAccountTokenRejected(t *testing.T) {
	s := newTestServer(t)
	token := s.account(t, models.User{Username: "gone", Role: models.RoleAdmin})
	users, err := s.service.GetAllUsers(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.service.DeleteUser(context.Background(), users[0].ID))

	w := s.do(t, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateClassConflicts(t *testing.T) {
	s := newTestServer(t)
	s.school(t)
	admin := s.account(t, models.User{Username: "admin", Role: models.RoleAdmin})

	clash := gin.H{
		"name": "Physics",
		"room": "a1 ",
		"schedule": []gin.H{
			{"day": "mon", "start": "18:00", "end": "19:00"},
		},
	}
	w := s.do(t, http.MethodPost, "/api/classes/check-conflicts", admin, clash)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "MATH")

	w = s.do(t, http.MethodPost, "/api/classes", admin, clash)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "conflicts")

	w = s.do(t, http.MethodPost, "/api/classes?force=true", admin, clash)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/schedule/conflicts", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Conflicts []json.RawMessage `json:"conflicts"`
	}](t, w)
	assert.NotEmpty(t, body.Conflicts)

	// back-to-back slots in the same room are fine
	w = s.do(t, http.MethodPost, "/api/classes", admin, gin.H{
		"name":     "Chess",
		"room":     "A1",
		"schedule": []gin.H{{"day": "mon", "start": "19:00", "end": "20:00"}},
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestCreateClassValidation(t *testing.T) {
	s := newTestServer(t)
	admin := s.account(t, models.User{Username: "admin", Role: models.RoleAdmin})

	w := s.do(t, http.MethodPost, "/api/classes", admin, gin.H{
		"name":     "Bad",
		"schedule": []gin.H{{"day": "someday", "start": "25:00", "end": "18:00"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "day")
}

func TestTeacherSessions(t *testing.T) {
	s := newTestServer(t)
	s.school(t)
	teacher := s.account(t, models.User{Username: "t1", Role: models.RoleTeacher, TeacherID: "T1"})

	w := s.do(t, http.MethodGet, "/api/classes/ENG", teacher, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodPost, "/api/classes/ENG/sessions", teacher, gin.H{"date": "2026-09-08"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/classes/MATH/sessions", teacher, gin.H{
		"date":      "2026-09-07",
		"topic":     "Fractions",
		"teacherId": "T2",
		"records": gin.H{
			"S1": gin.H{"status": "present", "score": 9, "homework": true},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	session := decode[models.AttendanceSession](t, w)
	assert.Equal(t, "T1", session.TeacherID, "teachers record sessions under their own name")

	w = s.do(t, http.MethodPost, "/api/classes/MATH/sessions", teacher, gin.H{
		"date":    "2026-09-14",
		"records": gin.H{"S2": gin.H{"status": "present"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "S2 is not enrolled in MATH")

	w = s.do(t, http.MethodPut, "/api/sessions/"+session.ID+"/records/S1", teacher, gin.H{"status": "late", "score": 11})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, http.MethodPut, "/api/sessions/"+session.ID+"/records/S1", teacher, gin.H{"status": "late", "score": 7})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/sessions/"+session.ID, teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"late"`)

	w = s.do(t, http.MethodGet, "/api/classes/MATH/sessions?month=2026-09", teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.AttendanceSession](t, w), 1)

	w = s.do(t, http.MethodGet, "/api/classes/MATH/sessions?month=09-2026", teacher, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGradeBookDownload(t *testing.T) {
	s := newTestServer(t)
	s.school(t)
	admin := s.account(t, models.User{Username: "admin", Role: models.RoleAdmin})
	_, err := s.service.AddSession(context.Background(), models.AttendanceSession{
		ClassID: "MATH",
		Date:    "2026-09-07",
		Records: map[string]models.AttendanceRecord{"S1": {Status: models.StatusPresent}},
	})
	require.NoError(t, err)

	w := s.do(t, http.MethodGet, "/api/classes/MATH/gradebook", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Student S1")

	w = s.do(t, http.MethodGet, "/api/classes/MATH/gradebook?format=xlsx&month=2026-09", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "gradebook-MATH-2026-09.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Grade Book")
}

func TestParentPortal(t *testing.T) {
	s := newTestServer(t)
	s.school(t)
	parent := s.account(t, models.User{Username: "mom", Role: models.RoleParent, StudentIDs: []string{"S1"}})

	w := s.do(t, http.MethodGet, "/api/parent/children", parent, nil)
	require.Equal(t, http.StatusOK, w.Code)
	children := decode[[]models.Student](t, w)
	require.Len(t, children, 1)
	assert.Equal(t, "S1", children[0].ID)

	w = s.do(t, http.MethodGet, "/api/parent/children/S1/report", parent, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/parent/children/S2/report", parent, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/parent/children/S2/receipts", parent, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReceipts(t *testing.T) {
	s := newTestServer(t)
	s.school(t)
	admin := s.account(t, models.User{Username: "admin", Role: models.RoleAdmin})
	parent := s.account(t, models.User{Username: "mom", Role: models.RoleParent, StudentIDs: []string{"S1"}})
	ctx := context.Background()
	for _, date := range []string{"2026-09-07", "2026-09-14"} {
		_, err := s.service.AddSession(ctx, models.AttendanceSession{
			ClassID: "MATH",
			Date:    date,
			Records: map[string]models.AttendanceRecord{"S1": {Status: models.StatusPresent}},
		})
		require.NoError(t, err)
	}

	w := s.do(t, http.MethodPost, "/api/receipts/tuition", admin, gin.H{"studentId": "S1", "classId": "MATH", "month": "2026-9"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/receipts/tuition", admin, gin.H{
		"studentId": "S1", "classId": "MATH", "month": "2026-09", "discount": 50,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tuition := decode[models.TuitionReceipt](t, w)
	assert.Equal(t, 2, tuition.Sessions)
	assert.Equal(t, 150.0, tuition.Amount)
	assert.Equal(t, "HP-202609-0001", tuition.Number)

	w = s.do(t, http.MethodPost, "/api/receipts/tuition", admin, gin.H{"studentId": "S1", "classId": "MATH", "month": "2026-09"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPatch, "/api/receipts/tuition/"+tuition.ID+"/paid", admin, gin.H{"paid": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[models.TuitionReceipt](t, w).Paid)

	w = s.do(t, http.MethodGet, "/api/receipts/tuition?paid=true&month=2026-09", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.TuitionReceipt](t, w), 1)

	w = s.do(t, http.MethodGet, "/api/receipts/tuition/"+tuition.ID+"/pdf", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, receipt.ContentType, w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))

	w = s.do(t, http.MethodGet, "/api/parent/children/S1/receipts/"+tuition.ID+"/pdf", parent, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/receipts/salary", admin, gin.H{"teacherId": "T1", "month": "2026-09", "bonus": 100})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	salary := decode[models.SalaryReceipt](t, w)
	assert.Equal(t, 2, salary.Sessions)
	assert.Equal(t, 500.0, salary.Amount)

	w = s.do(t, http.MethodGet, "/api/receipts/salary/"+salary.ID+"/pdf", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/receipts/export?month=2026-09", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))

	w = s.do(t, http.MethodDelete, "/api/receipts/tuition/"+tuition.ID, admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, "/api/receipts/tuition/"+tuition.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportStudentsUpload(t *testing.T) {
	s := newTestServer(t)
	s.school(t)
	admin := s.account(t, models.User{Username: "admin", Role: models.RoleAdmin})

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"ID", "Name", "Phone"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"N1", "New Kid", "555-0101"}))
	var book bytes.Buffer
	require.NoError(t, f.Write(&book))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("classId", "MATH"))
	part, err := mw.CreateFormFile("file", "roster.xlsx")
	require.NoError(t, err)
	_, err = part.Write(book.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import/students", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	enrolled, err := s.service.IsEnrolled(context.Background(), "MATH", "N1")
	require.NoError(t, err)
	assert.True(t, enrolled)
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t)
	s.school(t)
	admin := s.account(t, models.User{Username: "admin", Role: models.RoleAdmin})

	w := s.do(t, http.MethodGet, "/api/dashboard?month=2026-09", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"conflicts":0`)
}
