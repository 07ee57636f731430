package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"schoolhub-server-go/auth"
	"schoolhub-server-go/config"
	"schoolhub-server-go/db"
	"schoolhub-server-go/models"
)

// APIHandler holds the dependencies for API handlers, like the Redis service
type APIHandler struct {
	RedisService *db.RedisService
	Signer       *auth.Signer
	Config       *config.Config
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(service *db.RedisService, signer *auth.Signer, cfg *config.Config) *APIHandler {
	return &APIHandler{
		RedisService: service,
		Signer:       signer,
		Config:       cfg,
	}
}

// respondError translates a service error into a status code and JSON body.
// action completes "Failed to ..." for unexpected errors, which are logged.
func respondError(c *gin.Context, err error, action string) {
	var conflict *db.ConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "conflicts": conflict.Conflicts})
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, db.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, db.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("Error in %s handler: %v", action, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + bindingMessage(err)})
}

// bindPatch reads a partial update. Field checks happen in the store, where
// the merged entity is validated as a whole.
func bindPatch(c *gin.Context) (map[string]interface{}, bool) {
	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return nil, false
	}
	return patch, true
}

func forceFlag(c *gin.Context) bool {
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))
	return force
}

// sendFile renders into memory first so a failed render still gets a JSON error
func sendFile(c *gin.Context, contentType, filename string, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		respondError(c, err, "render "+filename)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// --- Class Handlers ---

// GetAllClasses handles GET /api/classes
func (h *APIHandler) GetAllClasses(c *gin.Context) {
	classes, err := h.RedisService.GetAllClasses(c.Request.Context())
	if err != nil {
		respondError(c, err, "retrieve classes")
		return
	}
	c.JSON(http.StatusOK, classes)
}

// GetClassByID handles GET /api/classes/:classId
func (h *APIHandler) GetClassByID(c *gin.Context) {
	clazz, ok := h.classForUser(c, c.Param("classId"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, clazz)
}

// classForUser loads a class the caller may work with: any class for admins,
// their own classes for teachers. It writes the error response itself.
func (h *APIHandler) classForUser(c *gin.Context, classID string) (*models.Clazz, bool) {
	clazz, err := h.RedisService.GetClassByID(c.Request.Context(), classID)
	if err != nil {
		respondError(c, err, "retrieve class details")
		return nil, false
	}
	if clazz == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Class not found"})
		return nil, false
	}
	user := currentUser(c)
	if user.Role != models.RoleAdmin && (user.TeacherID == "" || clazz.TeacherID != user.TeacherID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not teach this class"})
		return nil, false
	}
	return clazz, true
}

// AddClass handles POST /api/classes. Schedule conflicts are rejected with 409 unless ?force=true.
func (h *APIHandler) AddClass(c *gin.Context) {
	var newClass models.Clazz
	if err := c.ShouldBindJSON(&newClass); err != nil {
		badRequest(c, err)
		return
	}

	created, err := h.RedisService.AddClass(c.Request.Context(), newClass, forceFlag(c))
	if err != nil {
		respondError(c, err, "add class")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateClass handles PATCH /api/classes/:classId
func (h *APIHandler) UpdateClass(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	updated, err := h.RedisService.UpdateClass(c.Request.Context(), c.Param("classId"), patch, forceFlag(c))
	if err != nil {
		respondError(c, err, "update class")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteClass handles DELETE /api/classes/:classId
func (h *APIHandler) DeleteClass(c *gin.Context) {
	if err := h.RedisService.DeleteClass(c.Request.Context(), c.Param("classId")); err != nil {
		respondError(c, err, "delete class")
		return
	}
	c.Status(http.StatusNoContent)
}

type conflictCheckRequest struct {
	ID        string                `json:"id"`
	TeacherID string                `json:"teacherId"`
	Room      string                `json:"room"`
	Schedule  []models.ScheduleSlot `json:"schedule" binding:"required,dive"`
}

// CheckConflicts handles POST /api/classes/check-conflicts. It reports the
// clashes a schedule would cause without saving anything.
func (h *APIHandler) CheckConflicts(c *gin.Context) {
	var req conflictCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	candidate := models.Clazz{ID: req.ID, TeacherID: req.TeacherID, Room: req.Room, Schedule: req.Schedule}
	conflicts, err := h.RedisService.CheckConflicts(c.Request.Context(), candidate)
	if err != nil {
		respondError(c, err, "check conflicts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": conflicts})
}

// GetAllConflicts handles GET /api/schedule/conflicts
func (h *APIHandler) GetAllConflicts(c *gin.Context) {
	conflicts, err := h.RedisService.AllConflicts(c.Request.Context())
	if err != nil {
		respondError(c, err, "detect conflicts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": conflicts})
}

// --- Student Handlers ---

// GetAllStudents handles GET /api/students
func (h *APIHandler) GetAllStudents(c *gin.Context) {
	students, err := h.RedisService.GetAllStudents(c.Request.Context())
	if err != nil {
		respondError(c, err, "retrieve students")
		return
	}
	c.JSON(http.StatusOK, students)
}

// GetStudentByID handles GET /api/students/:studentId
func (h *APIHandler) GetStudentByID(c *gin.Context) {
	student, err := h.RedisService.GetStudentByID(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		respondError(c, err, "retrieve student")
		return
	}
	if student == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}
	c.JSON(http.StatusOK, student)
}

// AddStudent handles POST /api/students
func (h *APIHandler) AddStudent(c *gin.Context) {
	var newStudent models.Student
	if err := c.ShouldBindJSON(&newStudent); err != nil {
		badRequest(c, err)
		return
	}
	created, err := h.RedisService.AddStudent(c.Request.Context(), newStudent)
	if err != nil {
		respondError(c, err, "add student")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateStudent handles PATCH /api/students/:studentId
func (h *APIHandler) UpdateStudent(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	updated, err := h.RedisService.UpdateStudent(c.Request.Context(), c.Param("studentId"), patch)
	if err != nil {
		respondError(c, err, "update student")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteStudent handles DELETE /api/students/:studentId
func (h *APIHandler) DeleteStudent(c *gin.Context) {
	if err := h.RedisService.DeleteStudent(c.Request.Context(), c.Param("studentId")); err != nil {
		respondError(c, err, "delete student")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetStudentsByClass handles GET /api/classes/:classId/students
func (h *APIHandler) GetStudentsByClass(c *gin.Context) {
	clazz, ok := h.classForUser(c, c.Param("classId"))
	if !ok {
		return
	}
	students, err := h.RedisService.GetStudentsByClassID(c.Request.Context(), clazz.ID)
	if err != nil {
		respondError(c, err, "retrieve students for the class")
		return
	}
	c.JSON(http.StatusOK, students)
}

// EnrollStudent handles POST /api/classes/:classId/students/:studentId
func (h *APIHandler) EnrollStudent(c *gin.Context) {
	classID, studentID := c.Param("classId"), c.Param("studentId")
	if err := h.RedisService.Enroll(c.Request.Context(), classID, studentID); err != nil {
		respondError(c, err, "enroll student")
		return
	}
	c.JSON(http.StatusOK, gin.H{"classId": classID, "studentId": studentID, "enrolled": true})
}

// UnenrollStudent handles DELETE /api/classes/:classId/students/:studentId
func (h *APIHandler) UnenrollStudent(c *gin.Context) {
	if err := h.RedisService.Unenroll(c.Request.Context(), c.Param("classId"), c.Param("studentId")); err != nil {
		respondError(c, err, "unenroll student")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetRandomStudent handles GET /api/classes/:classId/random-student
func (h *APIHandler) GetRandomStudent(c *gin.Context) {
	clazz, ok := h.classForUser(c, c.Param("classId"))
	if !ok {
		return
	}
	student, err := h.RedisService.GetRandomStudent(c.Request.Context(), clazz.ID)
	if err != nil {
		respondError(c, err, "get random student")
		return
	}
	if student == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No students found in this class"})
		return
	}
	c.JSON(http.StatusOK, student)
}

// --- Import Handler ---

// ImportStudents handles POST /api/import/students (multipart: classId, file)
func (h *APIHandler) ImportStudents(c *gin.Context) {
	classID := c.PostForm("classId")
	if classID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'classId' in form data"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		log.Printf("Error getting form file: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error retrieving uploaded file: " + err.Error()})
		return
	}
	defer file.Close()

	log.Printf("Received file upload: %s for class: %s", header.Filename, classID)

	result, err := h.RedisService.ImportStudentsFromExcel(c.Request.Context(), file, classID)
	if err != nil {
		log.Printf("Error importing students from file %s for class %s: %v", header.Filename, classID, err)
		respondError(c, err, "import students")
		return
	}
	c.JSON(http.StatusOK, result)
}

// --- Ping Handler ---

// Ping handles GET /api/ping and reports whether Redis answers
func (h *APIHandler) Ping(c *gin.Context) {
	if err := h.RedisService.Ping(c.Request.Context()); err != nil {
		log.Printf("Redis ping failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Pong!", "redis": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pong!", "redis": "ok"})
}
