package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cardlet/cardlet-backend/internal/middleware"
	"github.com/cardlet/cardlet-backend/internal/model"
	"github.com/cardlet/cardlet-backend/internal/response"
	"github.com/cardlet/cardlet-backend/internal/service"
	"github.com/cardlet/cardlet-backend/internal/validator"
)

// TestHandler handles test lifecycle endpoints.
type TestHandler struct {
	testService *service.TestService
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(testService *service.TestService) *TestHandler {
	return &TestHandler{testService: testService}
}

// CreateTest godoc
// POST /api/v1/tests
// Opens a new test attempt on a published quiz.
func (h *TestHandler) CreateTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"test": test})
}

// ListTests godoc
// GET /api/v1/tests
// Lists the caller's tests with sorting and pagination.
func (h *TestHandler) ListTests(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var params model.ListTestsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	tests, pagination, err := h.testService.List(c.Request.Context(), claims.UserID, params)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"tests": tests}, pagination)
}

// GetTest godoc
// GET /api/v1/tests/:test_id
// Retrieves one of the caller's tests.
func (h *TestHandler) GetTest(c *gin.Context) {
	claims, testID, ok := h.authAndTestID(c)
	if !ok {
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// StartTest godoc
// POST /api/v1/tests/:test_id/start
// Transitions the test to IN_PROGRESS and starts the clock.
func (h *TestHandler) StartTest(c *gin.Context) {
	claims, testID, ok := h.authAndTestID(c)
	if !ok {
		return
	}

	test, err := h.testService.Start(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// GetTestingQuestion godoc
// GET /api/v1/tests/:test_id/questions/:question_id
// Retrieves the in-progress view of one question, answer key stripped.
func (h *TestHandler) GetTestingQuestion(c *gin.Context) {
	claims, testID, questionID, ok := h.authTestAndQuestionID(c)
	if !ok {
		return
	}

	question, err := h.testService.GetTestingQuestion(c.Request.Context(), claims.UserID, testID, questionID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// ResolveTestingQuestion godoc
// PUT /api/v1/tests/:test_id/questions/:question_id
// Records the caller's answers for one question, replacing prior answers.
func (h *TestHandler) ResolveTestingQuestion(c *gin.Context) {
	claims, testID, questionID, ok := h.authTestAndQuestionID(c)
	if !ok {
		return
	}

	var req model.ResolveTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.Resolve(c.Request.Context(), claims.UserID, testID, questionID, &req)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// SubmitTest godoc
// POST /api/v1/tests/:test_id/submit
// Ends the test and grades every question. First submission wins.
func (h *TestHandler) SubmitTest(c *gin.Context) {
	claims, testID, ok := h.authAndTestID(c)
	if !ok {
		return
	}

	result, err := h.testService.Submit(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// GetResult godoc
// GET /api/v1/tests/:test_id/result
// Retrieves the graded outcome of an ended test.
func (h *TestHandler) GetResult(c *gin.Context) {
	claims, testID, ok := h.authAndTestID(c)
	if !ok {
		return
	}

	result, err := h.testService.Result(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// ReviewSolution godoc
// GET /api/v1/tests/:test_id/questions/:question_id/solution
// Retrieves the post-test review of one question, answer key included.
func (h *TestHandler) ReviewSolution(c *gin.Context) {
	claims, testID, questionID, ok := h.authTestAndQuestionID(c)
	if !ok {
		return
	}

	solution, err := h.testService.ReviewSolution(c.Request.Context(), claims.UserID, testID, questionID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"solution": solution})
}

// GetQuestionStatuses godoc
// GET /api/v1/tests/:test_id/question-statuses
// Retrieves the per-question navigation overview of a test.
func (h *TestHandler) GetQuestionStatuses(c *gin.Context) {
	claims, testID, ok := h.authAndTestID(c)
	if !ok {
		return
	}

	statuses, err := h.testService.QuestionStatuses(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"statuses": statuses})
}

func (h *TestHandler) authAndTestID(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}

	return claims, testID, true
}

func (h *TestHandler) authTestAndQuestionID(c *gin.Context) (*service.Claims, uuid.UUID, uuid.UUID, bool) {
	claims, testID, ok := h.authAndTestID(c)
	if !ok {
		return nil, uuid.Nil, uuid.Nil, false
	}

	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, uuid.Nil, false
	}

	return claims, testID, questionID, true
}

// failDomain maps domain errors onto the API error vocabulary.
func failDomain(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrRecordNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, model.ErrAccessDenied):
		response.Fail(c, http.StatusForbidden, response.ErrPermissionDenied)
	case errors.Is(err, model.ErrTestEnded):
		response.Fail(c, http.StatusConflict, response.ErrTestEnded)
	case errors.Is(err, model.ErrTestNotEnd):
		response.Fail(c, http.StatusConflict, response.ErrTestNotEnded)
	case errors.Is(err, model.ErrInvalidAnswer):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidAnswer)
	case errors.Is(err, model.ErrRemainingTimeIncreased):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRemainingTime)
	case errors.Is(err, model.ErrQuizNotPublished):
		response.Fail(c, http.StatusConflict, response.ErrQuizNotPublished)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
