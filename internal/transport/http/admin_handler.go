package http

import (
	"net/http"

	"learnpath-quiz/internal/app"
	"learnpath-quiz/internal/domain"

	"github.com/gin-gonic/gin"
)

const roleHeader = "X-User-Role"

// WithAdmin enables the quiz management routes under /api/admin.
func (h *APIHandler) WithAdmin(admin *app.AdminService) *APIHandler {
	h.admin = admin
	return h
}

func (h *APIHandler) registerAdmin(api *gin.RouterGroup) {
	api.GET("/quiz-stats/:id", requireUser(domain.User.CanViewStats), h.quizStats)
	if h.admin == nil {
		return
	}
	admin := api.Group("/admin", requireUser(domain.User.IsAdmin))
	admin.POST("/quizzes", h.createQuiz)
	admin.GET("/quizzes/stats", h.catalogStats)
	admin.PUT("/quizzes/:id", h.updateQuiz)
	admin.DELETE("/quizzes/:id", h.deleteQuiz)
}

// requireUser rejects requests whose caller fails the role check.
func requireUser(allowed func(domain.User) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !allowed(userFrom(c)) {
			writeError(c, domain.ErrForbidden)
			return
		}
		c.Next()
	}
}

func userFrom(c *gin.Context) domain.User {
	return domain.User{
		ID:   c.GetHeader(userHeader),
		Role: domain.Role(c.GetHeader(roleHeader)),
	}
}

func (h *APIHandler) createQuiz(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Detail: "invalid request body: " + err.Error()})
		return
	}
	quiz, err := domain.DecodeQuiz(body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Detail: "invalid request body: " + err.Error()})
		return
	}
	created, err := h.admin.CreateQuiz(c.Request.Context(), quiz)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *APIHandler) updateQuiz(c *gin.Context) {
	var patch app.QuizPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Detail: "invalid request body: " + err.Error()})
		return
	}
	if err := h.validate.Struct(patch); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Detail: err.Error()})
		return
	}
	updated, err := h.admin.UpdateQuiz(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *APIHandler) deleteQuiz(c *gin.Context) {
	if err := h.admin.DeleteQuiz(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *APIHandler) catalogStats(c *gin.Context) {
	stats, err := h.admin.CatalogStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *APIHandler) quizStats(c *gin.Context) {
	stats, err := h.service.QuizStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
