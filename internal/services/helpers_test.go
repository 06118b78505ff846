package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/answerbase/go-knowledge-bot/internal/domain"
	"github.com/answerbase/go-knowledge-bot/internal/index"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.FlaggedQuestion{}, &domain.Exchange{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeEmbedder returns a fixed vector per exact text, or err for all calls.
type fakeEmbedder struct {
	vectors map[string][]float32
	def     []float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	if f.def != nil {
		return f.def, nil
	}
	return []float32{1, 0}, nil
}

// fakeGen replays canned outputs and records prompts.
type fakeGen struct {
	out     string
	err     error
	prompts []string
}

func (f *fakeGen) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

// fakeSearcher returns fixed results.
type fakeSearcher struct {
	results []index.Result
	err     error
}

func (f *fakeSearcher) Search(context.Context, string, int) ([]index.Result, error) {
	return f.results, f.err
}
