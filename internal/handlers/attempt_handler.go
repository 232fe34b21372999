package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edtestlab/exam-engine/internal/models"
	"github.com/edtestlab/exam-engine/internal/services"
	"github.com/edtestlab/exam-engine/internal/utils"
	"github.com/edtestlab/exam-engine/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *validator.Validator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// StartAttempt starts (or resumes) an attempt for an assignment
// @Summary Start attempt
// @Description Starts a new attempt for an assignment, or resumes the open one
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body services.StartAttemptRequest true "Start attempt data"
// @Success 201 {object} services.StartAttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	h.LogRequest(c, "Starting attempt")

	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	studentID := h.userID(c)
	if studentID == "" {
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), &req, studentID, h.clientInfo(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if attempt.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, attempt)
}

// GetAttempt retrieves an attempt with its question set
// @Summary Get attempt
// @Description Retrieves an attempt and its questions; correct answers appear only once completed
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptDetailResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting attempt", "attempt_id", id)

	studentID := h.userID(c)
	if studentID == "" {
		return
	}

	attempt, err := h.attemptService.GetByID(c.Request.Context(), id, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// SaveProgress overwrites the attempt's answer map and telemetry
// @Summary Save attempt progress
// @Description Replaces the stored answers wholesale and records telemetry
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param progress body services.AttemptProgressRequest true "Progress data"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id}/save [put]
func (h *AttemptHandler) SaveProgress(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Saving attempt progress", "attempt_id", id)

	var req services.AttemptProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	studentID := h.userID(c)
	if studentID == "" {
		return
	}

	if err := h.attemptService.SaveProgress(c.Request.Context(), id, &req, studentID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Progress saved"})
}

// SubmitAttempt grades and completes an attempt
// @Summary Submit attempt
// @Description Grades the final answers and completes the attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param progress body services.AttemptProgressRequest true "Final answers"
// @Success 200 {object} services.SubmitAttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id}/submit [put]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", id)

	var req services.AttemptProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	studentID := h.userID(c)
	if studentID == "" {
		return
	}

	result, err := h.attemptService.Submit(c.Request.Context(), id, &req, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetResult retrieves the graded breakdown of a completed attempt
// @Summary Get attempt result
// @Description Per-question correctness for a completed attempt; owner or teacher/admin
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResultResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id}/result [get]
func (h *AttemptHandler) GetResult(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting attempt result", "attempt_id", id)

	userID := h.userID(c)
	if userID == "" {
		return
	}

	result, err := h.attemptService.GetResult(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListByAssignment lists attempts for an assignment (monitoring)
// @Summary List attempts by assignment
// @Description Paginated attempt list for an assignment; teacher/admin only
// @Tags attempts
// @Produce json
// @Param id path uint true "Assignment ID"
// @Param page query int false "Page number" default(0)
// @Param size query int false "Page size" default(20)
// @Param student_id query string false "Filter by student"
// @Param completed query bool false "Filter by completion"
// @Success 200 {object} models.PaginatedResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /assignments/{id}/attempts [get]
func (h *AttemptHandler) ListByAssignment(c *gin.Context) {
	assignmentID := h.parseIDParam(c, "id")
	if assignmentID == 0 {
		return
	}

	h.LogRequest(c, "Listing attempts for assignment", "assignment_id", assignmentID)

	userID := h.userID(c)
	if userID == "" {
		return
	}

	params := h.parseListParams(c)
	page, err := h.attemptService.ListByAssignment(c.Request.Context(), assignmentID, params, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// Helper methods

// userID pulls the authenticated user from the context; writes a 401 and
// returns "" when auth middleware did not run.
func (h *AttemptHandler) userID(c *gin.Context) string {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "User not authenticated",
		})
		return ""
	}
	return userID
}

func (h *AttemptHandler) clientInfo(c *gin.Context) services.ClientInfo {
	info := services.ClientInfo{}
	if ip := c.ClientIP(); ip != "" {
		info.IPAddress = &ip
	}
	if ua := c.Request.UserAgent(); ua != "" {
		info.UserAgent = &ua
	}
	return info
}

func (h *AttemptHandler) parseListParams(c *gin.Context) models.ListAttemptsParams {
	params := models.ListAttemptsParams{
		Page:    h.parseIntQuery(c, "page", 0),
		Size:    h.parseIntQuery(c, "size", 20),
		SortBy:  c.Query("sort_by"),
		SortDir: c.Query("sort_dir"),
	}

	if studentID := strings.TrimSpace(c.Query("student_id")); studentID != "" {
		params.StudentID = &studentID
	}
	if completedStr := c.Query("completed"); completedStr != "" {
		if completed, err := strconv.ParseBool(completedStr); err == nil {
			params.Completed = &completed
		}
	}

	return params
}

func (h *AttemptHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func (h *AttemptHandler) handleServiceError(c *gin.Context, err error) {
	// Typed errors first
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "business_rule_violation",
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
		})
		return
	}

	switch {
	// Window and attempt-limit failures are bad requests against the
	// assignment's current rules, not permission problems.
	case errors.Is(err, services.ErrAssignmentNotStarted):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Assignment window has not opened yet",
		})
	case errors.Is(err, services.ErrAssignmentEnded):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Assignment window has closed",
		})
	case errors.Is(err, services.ErrMaxAttemptsReached):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Maximum attempts reached",
		})

	// Membership and activation failures are forbidden, not missing: the
	// assignment exists, the student just may not enter it.
	case errors.Is(err, services.ErrNotClassMember):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "Not an active member of the assigned class",
		})
	case errors.Is(err, services.ErrAssignmentInactive):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "Assignment is not active",
		})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "Insufficient permissions",
		})

	// Ownership failures and completed-attempt writes surface as not found.
	case errors.Is(err, services.ErrAttemptNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Attempt not found",
		})
	case errors.Is(err, services.ErrAttemptAlreadySubmitted):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Attempt already submitted",
		})
	case errors.Is(err, services.ErrAssignmentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Assignment not found",
		})
	case errors.Is(err, services.ErrTestNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Test not found",
		})
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "User not found",
		})

	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "server_error",
			Message: "Internal server error",
		})
	}
}
