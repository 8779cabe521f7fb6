package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anime-shed/ocr-camera-go/pkg/models"
	"github.com/google/uuid"
)

const defaultListLimit = 50

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLCaptureRepository implements CaptureRepository over database/sql.
// Queries use ? placeholders, which both supported drivers accept.
type SQLCaptureRepository struct {
	db  *DB
	now func() time.Time
}

func NewSQLCaptureRepository(db *DB) *SQLCaptureRepository {
	return &SQLCaptureRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *SQLCaptureRepository) SaveCapture(ctx context.Context, record *models.CaptureRecord) error {
	if err := r.prepareCapture(record); err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return insertCapture(ctx, tx, record)
	})
}

// SaveCaptureWithResult stores a capture, its analytics and its OCR result
// in one transaction. Either all rows are written or none.
func (r *SQLCaptureRepository) SaveCaptureWithResult(ctx context.Context, record *models.CaptureRecord, result *models.OCRResult) error {
	if err := r.prepareCapture(record); err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("%w: nil OCR result", ErrInvalidRecord)
	}
	result.CaptureID = record.ID
	r.prepareOCRResult(result)

	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertCapture(ctx, tx, record); err != nil {
			return err
		}
		return insertOCRResult(ctx, tx, result)
	})
}

func (r *SQLCaptureRepository) prepareCapture(record *models.CaptureRecord) error {
	if record == nil {
		return fmt.Errorf("%w: nil capture", ErrInvalidRecord)
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}
	if record.ContentType == "" {
		record.ContentType = models.ContentText
	}
	return nil
}

func insertCapture(ctx context.Context, ex execer, record *models.CaptureRecord) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO captures (
			id, artifact, camera_id, captured_at, confidence,
			preview, is_code, content_type, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Artifact,
		record.CameraID,
		record.Timestamp.UTC(),
		record.Confidence,
		record.Preview,
		record.IsCode,
		string(record.ContentType),
		record.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert capture: %w", err)
	}

	if record.Analytics != nil {
		return insertFrameMetadata(ctx, ex, record.ID, record.Analytics)
	}
	return nil
}

func (r *SQLCaptureRepository) SaveFrameMetadata(ctx context.Context, captureID string, metadata *models.FrameMetadata) error {
	if captureID == "" || metadata == nil {
		return fmt.Errorf("%w: frame metadata needs a capture id", ErrInvalidRecord)
	}
	return insertFrameMetadata(ctx, r.db.conn, captureID, metadata)
}

func insertFrameMetadata(ctx context.Context, ex execer, captureID string, md *models.FrameMetadata) error {
	if md.ID == "" {
		md.ID = uuid.NewString()
	}

	metrics := md.Metrics
	if metrics == nil {
		metrics = map[string]interface{}{}
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO frame_metadata (
			id, capture_id, captured_at, camera_id, blur_variance, illumination_mean,
			enhanced, enhanced_text, enhanced_confidence, enhanced_word_count,
			raw_text, raw_confidence, raw_word_count, accuracy_improvement, metrics
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		md.ID,
		captureID,
		md.Timestamp.UTC(),
		md.CameraID,
		md.BlurVariance,
		md.IlluminationMean,
		md.Enhanced,
		md.EnhancedText,
		md.EnhancedConfidence,
		md.EnhancedWordCount,
		md.RawText,
		md.RawConfidence,
		md.RawWordCount,
		md.AccuracyImprovement,
		string(metricsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert frame metadata: %w", err)
	}
	return nil
}

func (r *SQLCaptureRepository) SaveOCRResult(ctx context.Context, result *models.OCRResult) error {
	if result == nil || result.CaptureID == "" {
		return fmt.Errorf("%w: OCR result needs a capture id", ErrInvalidRecord)
	}
	r.prepareOCRResult(result)

	return r.inTx(ctx, func(tx *sql.Tx) error {
		return insertOCRResult(ctx, tx, result)
	})
}

func (r *SQLCaptureRepository) prepareOCRResult(result *models.OCRResult) {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = r.now()
	}
}

func insertOCRResult(ctx context.Context, ex execer, result *models.OCRResult) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO ocr_results (
			id, capture_id, extracted_text, confidence, word_count,
			character_count, line_count, content_type, processing_time_sec, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID,
		result.CaptureID,
		result.ExtractedText,
		result.Confidence,
		result.WordCount,
		result.CharacterCount,
		result.LineCount,
		string(result.ContentType),
		result.ProcessingTimeSec,
		result.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert OCR result: %w", err)
	}

	for _, block := range result.CodeBlocks {
		_, err := ex.ExecContext(ctx, `
			INSERT INTO code_blocks (
				id, ocr_result_id, capture_id, code, language, line_start, line_end
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(),
			result.ID,
			result.CaptureID,
			block.Code,
			block.Language,
			block.LineStart,
			block.LineEnd,
		)
		if err != nil {
			return fmt.Errorf("failed to insert code block: %w", err)
		}
	}
	return nil
}

const selectCapture = `
	SELECT c.id, c.artifact, c.camera_id, c.captured_at, c.confidence, c.preview,
		c.is_code, c.content_type, c.created_at,
		f.id, f.captured_at, f.camera_id, f.blur_variance, f.illumination_mean,
		f.enhanced, f.enhanced_text, f.enhanced_confidence, f.enhanced_word_count,
		f.raw_text, f.raw_confidence, f.raw_word_count, f.accuracy_improvement, f.metrics
	FROM captures c
	LEFT JOIN frame_metadata f ON f.capture_id = c.id`

func (r *SQLCaptureRepository) GetCapture(ctx context.Context, id string) (*models.CaptureRecord, error) {
	row := r.db.conn.QueryRowContext(ctx, selectCapture+` WHERE c.id = ?`, id)
	record, err := scanCapture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCaptureNotFound
	}
	return record, err
}

func (r *SQLCaptureRepository) ListCaptures(ctx context.Context, limit int) ([]*models.CaptureRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.db.conn.QueryContext(ctx, selectCapture+` ORDER BY c.captured_at DESC, c.id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	records := []*models.CaptureRecord{}
	for rows.Next() {
		record, err := scanCapture(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *SQLCaptureRepository) ListCodeBlocks(ctx context.Context, captureID string) ([]models.CodeBlock, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT code, language, line_start, line_end
		FROM code_blocks
		WHERE capture_id = ?
		ORDER BY line_start, line_end`, captureID)
	if err != nil {
		return nil, fmt.Errorf("failed to query code blocks: %w", err)
	}
	defer rows.Close()

	blocks := []models.CodeBlock{}
	for rows.Next() {
		var b models.CodeBlock
		if err := rows.Scan(&b.Code, &b.Language, &b.LineStart, &b.LineEnd); err != nil {
			return nil, fmt.Errorf("failed to scan code block: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCapture(s scanner) (*models.CaptureRecord, error) {
	var (
		record      models.CaptureRecord
		contentType string

		mdID, mdCamera, mdEnhancedText, mdRawText, mdMetrics sql.NullString
		mdTimestamp                                          sql.NullTime
		mdBlur, mdIllum, mdEnhancedConf, mdRawConf, mdDelta  sql.NullFloat64
		mdEnhanced                                           sql.NullBool
		mdEnhancedWords, mdRawWords                          sql.NullInt64
	)

	err := s.Scan(
		&record.ID, &record.Artifact, &record.CameraID, &record.Timestamp, &record.Confidence,
		&record.Preview, &record.IsCode, &contentType, &record.CreatedAt,
		&mdID, &mdTimestamp, &mdCamera, &mdBlur, &mdIllum,
		&mdEnhanced, &mdEnhancedText, &mdEnhancedConf, &mdEnhancedWords,
		&mdRawText, &mdRawConf, &mdRawWords, &mdDelta, &mdMetrics,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan capture: %w", err)
	}
	record.ContentType = models.ContentType(contentType)

	if mdID.Valid {
		md := &models.FrameMetadata{
			ID:                  mdID.String,
			Timestamp:           mdTimestamp.Time,
			CameraID:            mdCamera.String,
			BlurVariance:        mdBlur.Float64,
			IlluminationMean:    mdIllum.Float64,
			Enhanced:            mdEnhanced.Bool,
			EnhancedText:        mdEnhancedText.String,
			EnhancedConfidence:  mdEnhancedConf.Float64,
			EnhancedWordCount:   int(mdEnhancedWords.Int64),
			RawText:             mdRawText.String,
			RawConfidence:       mdRawConf.Float64,
			RawWordCount:        int(mdRawWords.Int64),
			AccuracyImprovement: mdDelta.Float64,
		}
		if mdMetrics.String != "" {
			if err := json.Unmarshal([]byte(mdMetrics.String), &md.Metrics); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
			}
		}
		record.Analytics = md
	}
	return &record, nil
}

func (r *SQLCaptureRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
