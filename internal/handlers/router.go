package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edtestlab/exam-engine/internal/config"
	"github.com/edtestlab/exam-engine/internal/models"
	"github.com/edtestlab/exam-engine/internal/repositories"
	"github.com/edtestlab/exam-engine/internal/services"
	"github.com/edtestlab/exam-engine/internal/utils"
	"github.com/edtestlab/exam-engine/internal/validator"
)

type HandlerManager struct {
	attemptHandler *AttemptHandler
	authMiddleware *CasdoorAuthMiddleware
	serviceManager services.ServiceManager
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		authMiddleware: authMiddleware,
		serviceManager: serviceManager,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.PUT("/:id/save", hm.attemptHandler.SaveProgress)
			attempts.PUT("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.GET("/:id/result", hm.attemptHandler.GetResult)
		}

		// Monitoring - Teachers and Admins only
		assignments := v1.Group("/assignments")
		{
			assignments.GET("/:id/attempts",
				hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin),
				hm.attemptHandler.ListByAssignment)
		}
	}

	router.GET("/health", hm.healthCheck)
}

func (hm *HandlerManager) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := hm.serviceManager.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "exam-engine",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "exam-engine",
	})
}
