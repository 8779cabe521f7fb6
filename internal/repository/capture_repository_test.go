package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/anime-shed/ocr-camera-go/pkg/models"
)

func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "captures_test.db") + "?_busy_timeout=5000"

	db, err := Open(context.Background(), DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	return db, func() { db.Close() }
}

func sampleCapture(id string, at time.Time) *models.CaptureRecord {
	return &models.CaptureRecord{
		CaptureEntry: models.CaptureEntry{
			ID:         id,
			Artifact:   "media/captures/" + id + ".png",
			Timestamp:  at,
			Confidence: 0.82,
			Preview:    "def main(): return 1",
			IsCode:     true,
			CameraID:   "camera_0",
			Analytics: &models.FrameMetadata{
				Timestamp:           at,
				CameraID:            "camera_0",
				BlurVariance:        312.5,
				IlluminationMean:    141.2,
				Enhanced:            true,
				EnhancedText:        "def main(): return 1",
				EnhancedConfidence:  82,
				EnhancedWordCount:   4,
				RawText:             "def rnain(): retum 1",
				RawConfidence:       61,
				RawWordCount:        4,
				AccuracyImprovement: 21,
				Metrics:             map[string]interface{}{"is_blurry": false, "word_count_delta": 0},
			},
		},
		ContentType: models.ContentCode,
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "postgres", "whatever")
	if !errors.Is(err, ErrUnsupportedDriver) {
		t.Errorf("Expected ErrUnsupportedDriver, got %v", err)
	}
}

func TestOpen_InvalidMySQLDSN(t *testing.T) {
	if _, err := Open(context.Background(), DriverMySQL, "not a dsn"); err == nil {
		t.Error("Expected an invalid DSN to be rejected")
	}
}

func TestSaveAndGetCapture(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewSQLCaptureRepository(db)
	ctx := context.Background()

	at := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	record := sampleCapture("cap-1", at)
	if err := repo.SaveCapture(ctx, record); err != nil {
		t.Fatalf("Failed to save capture: %v", err)
	}
	if record.Analytics.ID == "" {
		t.Error("Expected analytics id to be assigned")
	}

	got, err := repo.GetCapture(ctx, "cap-1")
	if err != nil {
		t.Fatalf("Failed to get capture: %v", err)
	}
	if got.Preview != record.Preview || !got.IsCode || got.ContentType != models.ContentCode {
		t.Errorf("Unexpected capture: %+v", got)
	}
	if !got.Timestamp.Equal(at) {
		t.Errorf("Expected timestamp %v, got %v", at, got.Timestamp)
	}
	if got.Analytics == nil {
		t.Fatal("Expected analytics to be joined")
	}
	if got.Analytics.AccuracyImprovement != 21 || got.Analytics.RawText != "def rnain(): retum 1" {
		t.Errorf("Unexpected analytics: %+v", got.Analytics)
	}
	if got.Analytics.Metrics["is_blurry"] != false {
		t.Errorf("Expected metrics to round-trip, got %v", got.Analytics.Metrics)
	}
}

func TestGetCapture_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewSQLCaptureRepository(db)

	_, err := repo.GetCapture(context.Background(), "missing")
	if !errors.Is(err, ErrCaptureNotFound) {
		t.Errorf("Expected ErrCaptureNotFound, got %v", err)
	}
}

func TestSaveCapture_WithoutAnalytics(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewSQLCaptureRepository(db)
	ctx := context.Background()

	record := sampleCapture("", time.Now().UTC())
	record.Analytics = nil
	if err := repo.SaveCapture(ctx, record); err != nil {
		t.Fatalf("Failed to save capture: %v", err)
	}
	if record.ID == "" {
		t.Fatal("Expected an id to be assigned")
	}

	got, err := repo.GetCapture(ctx, record.ID)
	if err != nil {
		t.Fatalf("Failed to get capture: %v", err)
	}
	if got.Analytics != nil {
		t.Errorf("Expected no analytics, got %+v", got.Analytics)
	}

	md := sampleCapture("x", time.Now().UTC()).Analytics
	if err := repo.SaveFrameMetadata(ctx, record.ID, md); err != nil {
		t.Fatalf("Failed to save frame metadata: %v", err)
	}
	got, _ = repo.GetCapture(ctx, record.ID)
	if got.Analytics == nil || got.Analytics.ID != md.ID {
		t.Errorf("Expected analytics saved separately to be joined, got %+v", got.Analytics)
	}

	if err := repo.SaveFrameMetadata(ctx, "", md); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Expected ErrInvalidRecord, got %v", err)
	}
}

func TestListCaptures_NewestFirst(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewSQLCaptureRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := repo.SaveCapture(ctx, sampleCapture(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Failed to save capture %s: %v", id, err)
		}
	}

	records, err := repo.ListCaptures(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to list captures: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].ID != "c" || records[1].ID != "b" {
		t.Errorf("Expected newest first [c b], got [%s %s]", records[0].ID, records[1].ID)
	}
}

func TestSaveOCRResult_WithCodeBlocks(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewSQLCaptureRepository(db)
	ctx := context.Background()

	if err := repo.SaveCapture(ctx, sampleCapture("cap-1", time.Now().UTC())); err != nil {
		t.Fatalf("Failed to save capture: %v", err)
	}

	result := &models.OCRResult{
		CaptureID:     "cap-1",
		ExtractedText: "intro\ndef f():\n    return 1\noutro\nSELECT 1",
		Confidence:    80,
		WordCount:     7,
		LineCount:     5,
		ContentType:   models.ContentMixed,
		CodeBlocks: []models.CodeBlock{
			{Code: "SELECT 1", Language: "sql", LineStart: 5, LineEnd: 5},
			{Code: "def f():\n    return 1", Language: "python", LineStart: 2, LineEnd: 3},
		},
	}
	if err := repo.SaveOCRResult(ctx, result); err != nil {
		t.Fatalf("Failed to save OCR result: %v", err)
	}
	if result.ID == "" {
		t.Error("Expected OCR result id to be assigned")
	}

	blocks, err := repo.ListCodeBlocks(ctx, "cap-1")
	if err != nil {
		t.Fatalf("Failed to list code blocks: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("Expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].Language != "python" || blocks[0].LineStart != 2 || blocks[1].Language != "sql" {
		t.Errorf("Expected blocks in line order, got %+v", blocks)
	}

	empty, err := repo.ListCodeBlocks(ctx, "other")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v, %v", empty, err)
	}

	if err := repo.SaveOCRResult(ctx, &models.OCRResult{}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Expected ErrInvalidRecord, got %v", err)
	}
}

func TestSaveCaptureWithResult(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewSQLCaptureRepository(db)
	ctx := context.Background()

	result := &models.OCRResult{
		ID:            "res-1",
		ExtractedText: "def f():\n    return 1",
		Confidence:    82,
		LineCount:     2,
		ContentType:   models.ContentCode,
		CodeBlocks:    []models.CodeBlock{{Code: "def f():\n    return 1", Language: "python", LineStart: 1, LineEnd: 2}},
	}
	if err := repo.SaveCaptureWithResult(ctx, sampleCapture("cap-1", time.Now().UTC()), result); err != nil {
		t.Fatalf("Failed to save capture with result: %v", err)
	}
	if result.CaptureID != "cap-1" {
		t.Errorf("Expected result linked to cap-1, got %q", result.CaptureID)
	}
	blocks, err := repo.ListCodeBlocks(ctx, "cap-1")
	if err != nil || len(blocks) != 1 {
		t.Fatalf("Expected 1 code block, got %d (%v)", len(blocks), err)
	}

	// A duplicate result id makes the second insert fail; the capture row
	// written before it must be rolled back.
	dup := &models.OCRResult{ID: "res-1", ExtractedText: "x", ContentType: models.ContentText}
	if err := repo.SaveCaptureWithResult(ctx, sampleCapture("cap-2", time.Now().UTC()), dup); err == nil {
		t.Fatal("Expected error for duplicate OCR result id")
	}
	if _, err := repo.GetCapture(ctx, "cap-2"); !errors.Is(err, ErrCaptureNotFound) {
		t.Errorf("Expected cap-2 to be rolled back, got %v", err)
	}

	if err := repo.SaveCaptureWithResult(ctx, sampleCapture("cap-3", time.Now().UTC()), nil); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Expected ErrInvalidRecord for nil result, got %v", err)
	}
}
