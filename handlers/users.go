package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"schoolhub-server-go/auth"
	"schoolhub-server-go/models"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login
func (h *APIHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.RedisService.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		respondError(c, err, "log in")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		log.Printf("Failed login for %q from %s", req.Username, c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}
	token, exp, err := h.Signer.Issue(*user)
	if err != nil {
		respondError(c, err, "issue token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": exp.UTC(), "user": user})
}

// Me handles GET /api/me
func (h *APIHandler) Me(c *gin.Context) {
	user := currentUser(c)
	resp := gin.H{"user": user}
	if user.TeacherID != "" {
		teacher, err := h.RedisService.GetTeacherByID(c.Request.Context(), user.TeacherID)
		if err != nil {
			respondError(c, err, "load profile")
			return
		}
		resp["teacher"] = teacher
	}
	c.JSON(http.StatusOK, resp)
}

// --- User Administration ---

type createUserRequest struct {
	Username   string      `json:"username" binding:"required"`
	Password   string      `json:"password" binding:"required,min=6"`
	Role       models.Role `json:"role" binding:"required,oneof=admin teacher parent"`
	TeacherID  string      `json:"teacherId"`
	StudentIDs []string    `json:"studentIds"`
}

type updateUserRequest struct {
	Password   string    `json:"password" binding:"omitempty,min=6"`
	TeacherID  *string   `json:"teacherId"`
	StudentIDs *[]string `json:"studentIds"`
}

// GetAllUsers handles GET /api/users
func (h *APIHandler) GetAllUsers(c *gin.Context) {
	users, err := h.RedisService.GetAllUsers(c.Request.Context())
	if err != nil {
		respondError(c, err, "retrieve users")
		return
	}
	c.JSON(http.StatusOK, users)
}

// CreateUser handles POST /api/users
func (h *APIHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.RedisService.CreateUser(c.Request.Context(), models.User{
		Username:     req.Username,
		PasswordHash: hash,
		Role:         req.Role,
		TeacherID:    req.TeacherID,
		StudentIDs:   req.StudentIDs,
	})
	if err != nil {
		respondError(c, err, "create user")
		return
	}
	c.JSON(http.StatusCreated, user)
}

// UpdateUser handles PATCH /api/users/:userId (password reset, account links)
func (h *APIHandler) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	existing, err := h.RedisService.GetUserByID(ctx, c.Param("userId"))
	if err != nil {
		respondError(c, err, "update user")
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	teacherID, studentIDs := existing.TeacherID, existing.StudentIDs
	if req.TeacherID != nil {
		teacherID = *req.TeacherID
	}
	if req.StudentIDs != nil {
		studentIDs = *req.StudentIDs
	}
	hash := ""
	if req.Password != "" {
		if hash, err = auth.HashPassword(req.Password); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	user, err := h.RedisService.UpdateUserLinks(ctx, existing.ID, teacherID, studentIDs, hash)
	if err != nil {
		respondError(c, err, "update user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteUser handles DELETE /api/users/:userId. Admins cannot delete their own account.
func (h *APIHandler) DeleteUser(c *gin.Context) {
	userID := c.Param("userId")
	if currentUser(c).ID == userID {
		c.JSON(http.StatusConflict, gin.H{"error": "You cannot delete your own account"})
		return
	}
	if err := h.RedisService.DeleteUser(c.Request.Context(), userID); err != nil {
		respondError(c, err, "delete user")
		return
	}
	c.Status(http.StatusNoContent)
}
