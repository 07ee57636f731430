package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"schoolhub-server-go/models"
)

func corsConfig(h *APIHandler) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if h.Config.AllowAllOrigins() {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = h.Config.CORSOrigins
		cfg.AllowCredentials = true
	}
	return cfg
}

// SetupRouter builds the gin engine with every API route
func SetupRouter(h *APIHandler) *gin.Engine {
	RegisterValidators()

	router := gin.Default()
	router.Use(cors.New(corsConfig(h)))
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})

	api := router.Group("/api")
	api.GET("/ping", h.Ping)
	api.POST("/auth/login", h.Login)

	authed := api.Group("", h.RequireAuth())
	authed.GET("/me", h.Me)

	// Admins, and teachers for the classes they teach
	staff := authed.Group("", RequireRole(models.RoleAdmin, models.RoleTeacher))
	{
		staff.GET("/classes/:classId", h.GetClassByID)
		staff.GET("/classes/:classId/students", h.GetStudentsByClass)
		staff.GET("/classes/:classId/random-student", h.GetRandomStudent)
		staff.GET("/classes/:classId/sessions", h.GetClassSessions)
		staff.POST("/classes/:classId/sessions", h.AddSession)
		staff.GET("/classes/:classId/gradebook", h.GetGradeBook)

		staff.GET("/sessions/:sessionId", h.GetSession)
		staff.PATCH("/sessions/:sessionId", h.UpdateSession)
		staff.DELETE("/sessions/:sessionId", h.DeleteSession)
		staff.PUT("/sessions/:sessionId/records/:studentId", h.SetRecord)
		staff.GET("/sessions/:sessionId/export", h.ExportSession)
	}

	teacher := authed.Group("/teacher", RequireRole(models.RoleTeacher))
	teacher.GET("/classes", h.GetMyClasses)

	parent := authed.Group("/parent", RequireRole(models.RoleParent))
	{
		parent.GET("/children", h.GetChildren)
		parent.GET("/children/:studentId/report", h.GetChildReport)
		parent.GET("/children/:studentId/receipts", h.GetChildReceipts)
		parent.GET("/children/:studentId/receipts/:receiptId/pdf", h.ChildReceiptPDF)
	}

	admin := authed.Group("", RequireRole(models.RoleAdmin))
	{
		// Classes and schedule
		admin.GET("/classes", h.GetAllClasses)
		admin.POST("/classes", h.AddClass)
		admin.POST("/classes/check-conflicts", h.CheckConflicts)
		admin.PATCH("/classes/:classId", h.UpdateClass)
		admin.DELETE("/classes/:classId", h.DeleteClass)
		admin.POST("/classes/:classId/students/:studentId", h.EnrollStudent)
		admin.DELETE("/classes/:classId/students/:studentId", h.UnenrollStudent)
		admin.GET("/schedule/conflicts", h.GetAllConflicts)

		// Students
		admin.GET("/students", h.GetAllStudents)
		admin.POST("/students", h.AddStudent)
		admin.GET("/students/export", h.ExportStudents)
		admin.GET("/students/:studentId", h.GetStudentByID)
		admin.PATCH("/students/:studentId", h.UpdateStudent)
		admin.DELETE("/students/:studentId", h.DeleteStudent)
		admin.GET("/students/:studentId/report", h.GetStudentReport)
		admin.POST("/import/students", h.ImportStudents)

		// Teachers
		admin.GET("/teachers", h.GetAllTeachers)
		admin.POST("/teachers", h.AddTeacher)
		admin.GET("/teachers/:teacherId", h.GetTeacherByID)
		admin.PATCH("/teachers/:teacherId", h.UpdateTeacher)
		admin.DELETE("/teachers/:teacherId", h.DeleteTeacher)

		// Accounts
		admin.GET("/users", h.GetAllUsers)
		admin.POST("/users", h.CreateUser)
		admin.PATCH("/users/:userId", h.UpdateUser)
		admin.DELETE("/users/:userId", h.DeleteUser)

		// Receipts
		admin.GET("/receipts/export", h.ExportReceipts)
		admin.GET("/receipts/tuition", h.ListTuitionReceipts)
		admin.POST("/receipts/tuition", h.CreateTuitionReceipt)
		admin.GET("/receipts/tuition/:receiptId", h.GetTuitionReceipt)
		admin.PATCH("/receipts/tuition/:receiptId/paid", h.SetTuitionPaid)
		admin.DELETE("/receipts/tuition/:receiptId", h.DeleteTuitionReceipt)
		admin.GET("/receipts/tuition/:receiptId/pdf", h.TuitionPDF)
		admin.GET("/receipts/salary", h.ListSalaryReceipts)
		admin.POST("/receipts/salary", h.CreateSalaryReceipt)
		admin.GET("/receipts/salary/:receiptId", h.GetSalaryReceipt)
		admin.PATCH("/receipts/salary/:receiptId/paid", h.SetSalaryPaid)
		admin.DELETE("/receipts/salary/:receiptId", h.DeleteSalaryReceipt)
		admin.GET("/receipts/salary/:receiptId/pdf", h.SalaryPDF)

		admin.GET("/dashboard", h.GetDashboard)
		admin.GET("/events", h.Events)
	}

	return router
}
