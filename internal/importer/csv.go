// Package importer loads bulk knowledge from CSV files into a knowledge
// index. Files exported from spreadsheet tools are commonly UTF-8 with a
// byte-order mark; the reader strips it transparently.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/answerbase/go-knowledge-bot/internal/index"
)

// Column headers are matched case-sensitively.
const (
	colQuestion = "question"
	colAnswer   = "answer"
)

// ErrMissingColumns is returned when the header row lacks the question or
// answer column.
var ErrMissingColumns = errors.New(`importer: header must contain "question" and "answer" columns`)

// Writer is the index mutation capability the importer needs.
type Writer interface {
	Add(ctx context.Context, doc index.Document) error
	Persist() error
}

// ImportCSV reads question/answer rows from r and adds each as one
// csv_import document to dst, persisting the snapshot once at the end.
// Rows with an empty question or answer are skipped. Returns the number of
// documents imported.
func ImportCSV(ctx context.Context, dst Writer, r io.Reader) (int, error) {
	// Strip a UTF-8 BOM if present, pass everything else through.
	decoded := transform.NewReader(r, unicode.BOMOverride(transform.Nop))

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return 0, ErrMissingColumns
	}
	if err != nil {
		return 0, fmt.Errorf("importer: read header: %w", err)
	}

	qi, ai := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case colQuestion:
			qi = i
		case colAnswer:
			ai = i
		}
	}
	if qi < 0 || ai < 0 {
		return 0, ErrMissingColumns
	}

	imported := 0
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("importer: line %d: %w", line, err)
		}
		if qi >= len(rec) || ai >= len(rec) {
			continue
		}
		question := strings.TrimSpace(rec[qi])
		answer := strings.TrimSpace(rec[ai])
		if question == "" || answer == "" {
			continue
		}

		doc := index.Document{
			ID:        uuid.NewString(),
			Content:   fmt.Sprintf("Q: %s\nA: %s", question, answer),
			Origin:    index.OriginCSVImport,
			CreatedAt: time.Now().UTC(),
		}
		if err := dst.Add(ctx, doc); err != nil {
			return imported, fmt.Errorf("importer: line %d: %w", line, err)
		}
		imported++
	}

	if imported > 0 {
		if err := dst.Persist(); err != nil {
			return imported, fmt.Errorf("importer: persist: %w", err)
		}
	}
	return imported, nil
}
