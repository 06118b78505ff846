package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/answerbase/go-knowledge-bot/internal/http/middleware"
	"github.com/answerbase/go-knowledge-bot/internal/importer"
)

// ImportKnowledge handles POST /knowledge/import: a multipart CSV upload
// whose rows become csv_import documents in the general knowledge index.
//
// @Summary      Bulk import knowledge from CSV
// @Description  Expects a multipart form with a "file" field. The CSV must have "question" and "answer" columns; rows with an empty question or answer are skipped.
// @Tags         knowledge
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "CSV file"
// @Success      200 {object} map[string]int
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /knowledge/import [post]
func (h *Handler) ImportKnowledge(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, `multipart "file" field is required`)
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "uploaded file could not be opened")
		return
	}
	defer f.Close()

	count, err := importer.ImportCSV(c.Request.Context(), h.General, f)
	if errors.Is(err, importer.ErrMissingColumns) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Int("imported", count).Msg("csv import failed")
		fail(c, http.StatusInternalServerError, ErrCodeImportFailed, "import failed, see server logs")
		return
	}

	middleware.LoggerFrom(c).Info().Int("imported", count).Str("filename", fh.Filename).Msg("knowledge imported")
	ok(c, http.StatusOK, gin.H{"imported": count})
}
