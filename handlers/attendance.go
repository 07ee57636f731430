package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"schoolhub-server-go/export"
	"schoolhub-server-go/models"
	"schoolhub-server-go/stats"
)

type sessionRequest struct {
	Date      string                             `json:"date" binding:"required,ymd"`
	Topic     string                             `json:"topic"`
	TeacherID string                             `json:"teacherId"`
	Records   map[string]models.AttendanceRecord `json:"records"`
}

// --- Attendance Handlers ---

// GetClassSessions handles GET /api/classes/:classId/sessions (?month=YYYY-MM)
func (h *APIHandler) GetClassSessions(c *gin.Context) {
	clazz, ok := h.classForUser(c, c.Param("classId"))
	if !ok {
		return
	}
	sessions, err := h.RedisService.ListSessionsByClass(c.Request.Context(), clazz.ID)
	if err != nil {
		respondError(c, err, "retrieve sessions")
		return
	}
	c.JSON(http.StatusOK, stats.FilterMonth(sessions, c.Query("month")))
}

// AddSession handles POST /api/classes/:classId/sessions. Teachers always record
// sessions under their own name; admins may name a substitute.
func (h *APIHandler) AddSession(c *gin.Context) {
	clazz, ok := h.classForUser(c, c.Param("classId"))
	if !ok {
		return
	}
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	session := models.AttendanceSession{
		ClassID:   clazz.ID,
		TeacherID: req.TeacherID,
		Date:      req.Date,
		Topic:     req.Topic,
		Records:   req.Records,
	}
	if user := currentUser(c); user.Role == models.RoleTeacher {
		session.TeacherID = user.TeacherID
	}
	created, err := h.RedisService.AddSession(c.Request.Context(), session)
	if err != nil {
		respondError(c, err, "add session")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// sessionForUser loads a session together with its class, checking the caller
// teaches the class or taught the session
func (h *APIHandler) sessionForUser(c *gin.Context) (*models.AttendanceSession, *models.Clazz, bool) {
	ctx := c.Request.Context()
	session, err := h.RedisService.GetSession(ctx, c.Param("sessionId"))
	if err != nil {
		respondError(c, err, "retrieve session")
		return nil, nil, false
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, nil, false
	}
	clazz, err := h.RedisService.GetClassByID(ctx, session.ClassID)
	if err != nil {
		respondError(c, err, "retrieve session")
		return nil, nil, false
	}
	if clazz == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Class not found"})
		return nil, nil, false
	}
	user := currentUser(c)
	allowed := user.Role == models.RoleAdmin ||
		(user.TeacherID != "" && (clazz.TeacherID == user.TeacherID || session.TeacherID == user.TeacherID))
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not teach this class"})
		return nil, nil, false
	}
	return session, clazz, true
}

// GetSession handles GET /api/sessions/:sessionId
func (h *APIHandler) GetSession(c *gin.Context) {
	session, _, ok := h.sessionForUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "summary": stats.SessionSummary(*session)})
}

// UpdateSession handles PATCH /api/sessions/:sessionId
func (h *APIHandler) UpdateSession(c *gin.Context) {
	session, _, ok := h.sessionForUser(c)
	if !ok {
		return
	}
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	if currentUser(c).Role != models.RoleAdmin {
		delete(patch, "teacherId")
	}
	updated, err := h.RedisService.UpdateSession(c.Request.Context(), session.ID, patch)
	if err != nil {
		respondError(c, err, "update session")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// SetRecord handles PUT /api/sessions/:sessionId/records/:studentId
func (h *APIHandler) SetRecord(c *gin.Context) {
	session, _, ok := h.sessionForUser(c)
	if !ok {
		return
	}
	var record models.AttendanceRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := h.RedisService.SetRecord(c.Request.Context(), session.ID, c.Param("studentId"), record)
	if err != nil {
		respondError(c, err, "save record")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteSession handles DELETE /api/sessions/:sessionId
func (h *APIHandler) DeleteSession(c *gin.Context) {
	session, _, ok := h.sessionForUser(c)
	if !ok {
		return
	}
	if err := h.RedisService.DeleteSession(c.Request.Context(), session.ID); err != nil {
		respondError(c, err, "delete session")
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportSession handles GET /api/sessions/:sessionId/export
func (h *APIHandler) ExportSession(c *gin.Context) {
	session, clazz, ok := h.sessionForUser(c)
	if !ok {
		return
	}
	students, err := h.RedisService.GetStudentsByClassID(c.Request.Context(), clazz.ID)
	if err != nil {
		respondError(c, err, "export session")
		return
	}
	name := fmt.Sprintf("attendance-%s-%s.xlsx", clazz.ID, session.Date)
	sendFile(c, export.ContentType, name, func(w io.Writer) error {
		return export.Session(w, *clazz, *session, students)
	})
}
