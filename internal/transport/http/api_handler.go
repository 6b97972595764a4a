package http

import (
	"errors"
	"net/http"

	"learnpath-quiz/internal/app"
	"learnpath-quiz/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const userHeader = "X-User-ID"

// APIHandler serves the quiz catalog and attempt lifecycle over REST.
type APIHandler struct {
	service  *app.AttemptService
	admin    *app.AdminService
	validate *validator.Validate
}

func NewAPIHandler(service *app.AttemptService) *APIHandler {
	return &APIHandler{
		service:  service,
		validate: validator.New(),
	}
}

type errorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

func (h *APIHandler) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.GET("/quizzes", h.listQuizzes)
	api.GET("/quizzes/:id", h.getQuiz)

	attempts := api.Group("/quiz-attempts")
	attempts.POST("/start/:quiz_id", h.startAttempt)
	attempts.POST("/:id/answer", h.submitAnswer)
	attempts.POST("/:id/finish", h.finishAttempt)
	attempts.GET("/:id", h.getAttempt)

	api.GET("/my/attempts", h.history)

	h.registerAdmin(api)
}

func (h *APIHandler) listQuizzes(c *gin.Context) {
	quizzes, err := h.service.ListQuizzes(c.Request.Context(), c.Query("subject"), c.Query("difficulty"))
	if err != nil {
		writeError(c, err)
		return
	}
	if quizzes == nil {
		quizzes = []domain.QuizSummary{}
	}
	c.JSON(http.StatusOK, quizzes)
}

func (h *APIHandler) getQuiz(c *gin.Context) {
	quiz, err := h.service.GetQuiz(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quiz.StudentView())
}

func (h *APIHandler) startAttempt(c *gin.Context) {
	attempt, err := h.service.StartAttempt(c.Request.Context(), c.Param("quiz_id"), c.GetHeader(userHeader))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, attempt)
}

func (h *APIHandler) submitAnswer(c *gin.Context) {
	var req domain.AnswerSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Detail: "invalid request body: " + err.Error()})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Detail: err.Error()})
		return
	}
	if err := h.service.SubmitAnswer(c.Request.Context(), c.Param("id"), req); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *APIHandler) finishAttempt(c *gin.Context) {
	result, err := h.service.FinishAttempt(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *APIHandler) getAttempt(c *gin.Context) {
	attempt, err := h.service.GetAttempt(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempt)
}

func (h *APIHandler) history(c *gin.Context) {
	attempts, err := h.service.History(c.Request.Context(), c.GetHeader(userHeader))
	if err != nil {
		writeError(c, err)
		return
	}
	if attempts == nil {
		attempts = []domain.Attempt{}
	}
	c.JSON(http.StatusOK, attempts)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrAttemptNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAttemptFinished), errors.Is(err, domain.ErrQuestionOutOfOrder):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidOption), errors.Is(err, domain.ErrEmptyQuiz), errors.Is(err, domain.ErrInvalidQuiz):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.AbortWithStatusJSON(status, errorResponse{Detail: "internal server error"})
		return
	}
	c.AbortWithStatusJSON(status, errorResponse{Detail: err.Error(), Code: domain.ErrorCode(err)})
}
