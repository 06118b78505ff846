package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/answerbase/go-knowledge-bot/internal/domain"
	"github.com/answerbase/go-knowledge-bot/internal/services"
	"github.com/answerbase/go-knowledge-bot/internal/utils"
)

// FlaggedQuestionDTO is the reviewer-facing projection of a flagged question.
type FlaggedQuestionDTO struct {
	ID           uint      `json:"id" example:"7"`
	Question     string    `json:"question" example:"What is the refund window?"`
	BotResponse  string    `json:"bot_response" example:"30 days"`
	DislikeCount int       `json:"dislike_count" example:"2"`
	CreatedAt    time.Time `json:"created_at"`
}

// QuestionsPage is the paginated pending-question list.
type QuestionsPage struct {
	Items    []FlaggedQuestionDTO `json:"items"`
	Total    int64                `json:"total" example:"42"`
	Page     int                  `json:"page" example:"1"`
	PageSize int                  `json:"page_size" example:"20"`
}

// CorrectionRequest is the body of a correction submission.
type CorrectionRequest struct {
	CorrectAnswer string `json:"correct_answer" binding:"required" example:"Refunds are accepted within 30 days of purchase."`
}

func toDTO(q domain.FlaggedQuestion) FlaggedQuestionDTO {
	return FlaggedQuestionDTO{
		ID:           q.ID,
		Question:     q.Question,
		BotResponse:  q.BotResponse,
		DislikeCount: q.DislikeCount,
		CreatedAt:    q.CreatedAt,
	}
}

// ListQuestions handles GET /questions, the reviewer dashboard feed of
// pending flagged questions, oldest first.
//
// @Summary      List pending flagged questions
// @Tags         questions
// @Produce      json
// @Param        page      query int false "page (1-based)" default(1)
// @Param        page_size query int false "page size" default(20)
// @Success      200 {object} QuestionsPage
// @Failure      500 {object} ErrorResponse
// @Router       /questions [get]
func (h *Handler) ListQuestions(c *gin.Context) {
	page := utils.AtoiDefault(c.Query("page"), 1)
	pageSize := utils.AtoiDefault(c.Query("page_size"), 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := h.Feedback.Pending(c.Request.Context(), (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list flagged questions")
		return
	}

	dtos := make([]FlaggedQuestionDTO, 0, len(items))
	for _, q := range items {
		dtos = append(dtos, toDTO(q))
	}
	ok(c, http.StatusOK, QuestionsPage{Items: dtos, Total: total, Page: page, PageSize: pageSize})
}

// SubmitAnswer handles POST /questions/:id/answer: a human correction that
// promotes the flagged question into the verified knowledge index and
// resolves it.
//
// @Summary      Submit a corrected answer
// @Tags         questions
// @Accept       json
// @Produce      json
// @Param        id   path int               true "flagged question id"
// @Param        body body CorrectionRequest true "corrected answer"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /questions/{id}/answer [post]
func (h *Handler) SubmitAnswer(c *gin.Context) {
	id := utils.AtoiDefault(c.Param("id"), 0)
	if id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid question id")
		return
	}
	var req CorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "correct_answer is required")
		return
	}

	err := h.Feedback.SubmitCorrection(c.Request.Context(), uint(id), req.CorrectAnswer)
	switch {
	case err == nil:
		ok(c, http.StatusOK, gin.H{"status": "resolved"})
	case errors.Is(err, services.ErrQuestionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "flagged question not found")
	case errors.Is(err, services.ErrEmptyCorrection):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "correct_answer must not be blank")
	default:
		// The flagged record stays pending; the reviewer can retry safely.
		fail(c, http.StatusInternalServerError, ErrCodeCorrectionFailed, "correction could not be stored, please retry")
	}
}

// Dislike handles POST /questions/:id/dislike, incrementing the counter of
// an existing flagged question.
//
// @Summary      Record a dislike on a flagged question
// @Tags         questions
// @Produce      json
// @Param        id path int true "flagged question id"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /questions/{id}/dislike [post]
func (h *Handler) Dislike(c *gin.Context) {
	id := utils.AtoiDefault(c.Param("id"), 0)
	if id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid question id")
		return
	}

	err := h.Feedback.RecordDislike(c.Request.Context(), uint(id))
	switch {
	case err == nil:
		ok(c, http.StatusOK, gin.H{"status": "recorded"})
	case errors.Is(err, services.ErrQuestionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "flagged question not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeDislikeFailed, "could not record dislike")
	}
}
