package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schoolhub-server-go/models"
)

// --- Teacher Handlers ---

// GetAllTeachers handles GET /api/teachers
func (h *APIHandler) GetAllTeachers(c *gin.Context) {
	teachers, err := h.RedisService.GetAllTeachers(c.Request.Context())
	if err != nil {
		respondError(c, err, "retrieve teachers")
		return
	}
	c.JSON(http.StatusOK, teachers)
}

// GetTeacherByID handles GET /api/teachers/:teacherId
func (h *APIHandler) GetTeacherByID(c *gin.Context) {
	teacher, err := h.RedisService.GetTeacherByID(c.Request.Context(), c.Param("teacherId"))
	if err != nil {
		respondError(c, err, "retrieve teacher")
		return
	}
	if teacher == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Teacher not found"})
		return
	}
	c.JSON(http.StatusOK, teacher)
}

// AddTeacher handles POST /api/teachers
func (h *APIHandler) AddTeacher(c *gin.Context) {
	var newTeacher models.Teacher
	if err := c.ShouldBindJSON(&newTeacher); err != nil {
		badRequest(c, err)
		return
	}
	created, err := h.RedisService.AddTeacher(c.Request.Context(), newTeacher)
	if err != nil {
		respondError(c, err, "add teacher")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateTeacher handles PATCH /api/teachers/:teacherId
func (h *APIHandler) UpdateTeacher(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	updated, err := h.RedisService.UpdateTeacher(c.Request.Context(), c.Param("teacherId"), patch)
	if err != nil {
		respondError(c, err, "update teacher")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteTeacher handles DELETE /api/teachers/:teacherId; 409 while they still teach a class
func (h *APIHandler) DeleteTeacher(c *gin.Context) {
	if err := h.RedisService.DeleteTeacher(c.Request.Context(), c.Param("teacherId")); err != nil {
		respondError(c, err, "delete teacher")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetMyClasses handles GET /api/teacher/classes
func (h *APIHandler) GetMyClasses(c *gin.Context) {
	user := currentUser(c)
	classes, err := h.RedisService.GetClassesByTeacher(c.Request.Context(), user.TeacherID)
	if err != nil {
		respondError(c, err, "retrieve your classes")
		return
	}
	c.JSON(http.StatusOK, classes)
}
