package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"heartpredict/ml"
)

// TimestampLayout is how prediction times are stored in the timestamp column.
const TimestampLayout = "2006-01-02 15:04:05"

// PredictionRecord is one stored prediction. Rows are append-only.
type PredictionRecord struct {
	ID         int64            `json:"id"`
	Features   ml.FeatureVector `json:"features"`
	Label      int              `json:"label"`
	Confidence float64          `json:"confidence"`
	Timestamp  time.Time        `json:"timestamp"`
}

// PredictionStore appends predictions to a SQLite file. It holds no connection:
// every call opens the file, makes sure the table exists, does its work and closes.
type PredictionStore struct {
	path string
}

func NewPredictionStore(path string) *PredictionStore {
	return &PredictionStore{path: path}
}

func (s *PredictionStore) Path() string {
	return s.path
}

var (
	featureColumns = strings.Join(ml.FeatureNames(), ", ")

	createTable = func() string {
		columns := make([]string, 0, ml.FeatureCount)
		for _, name := range ml.FeatureNames() {
			columns = append(columns, name+" REAL")
		}
		return `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ` + strings.Join(columns, ",\n        ") + `,
        prediction INTEGER,
        confidence REAL,
        timestamp TEXT
    )`
	}()

	insertPrediction = `
    INSERT INTO predictions (
        ` + featureColumns + `,
        prediction, confidence, timestamp
    ) VALUES (` + strings.TrimSuffix(strings.Repeat("?, ", ml.FeatureCount+3), ", ") + `)`

	selectPredictions = `
    SELECT id, ` + featureColumns + `, prediction, confidence, timestamp
    FROM predictions
    ORDER BY id DESC
    LIMIT ?`
)

func (s *PredictionStore) open(ctx context.Context) (*sql.DB, error) {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	database, err := sql.Open("sqlite3", s.path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	database.SetMaxOpenConns(1)

	if _, err := database.ExecContext(ctx, createTable); err != nil {
		database.Close()
		return nil, fmt.Errorf("create table failed: %w", err)
	}
	return database, nil
}

// Append inserts rec and returns the new row id. The insert is its own commit.
func (s *PredictionStore) Append(ctx context.Context, rec PredictionRecord) (int64, error) {
	database, err := s.open(ctx)
	if err != nil {
		return 0, err
	}
	defer database.Close()

	args := make([]interface{}, 0, ml.FeatureCount+3)
	for _, value := range rec.Features {
		args = append(args, value)
	}
	args = append(args, rec.Label, rec.Confidence, rec.Timestamp.Format(TimestampLayout))

	result, err := database.ExecContext(ctx, insertPrediction, args...)
	if err != nil {
		return 0, fmt.Errorf("insert prediction failed: %w", err)
	}
	return result.LastInsertId()
}

// List returns up to limit records, newest first.
func (s *PredictionStore) List(ctx context.Context, limit int) ([]PredictionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	database, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer database.Close()

	rows, err := database.QueryContext(ctx, selectPredictions, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		var rec PredictionRecord
		var stamp string
		dest := make([]interface{}, 0, ml.FeatureCount+4)
		dest = append(dest, &rec.ID)
		for i := range rec.Features {
			dest = append(dest, &rec.Features[i])
		}
		dest = append(dest, &rec.Label, &rec.Confidence, &stamp)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		rec.Timestamp, err = time.ParseInLocation(TimestampLayout, stamp, time.Local)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PredictionStore) Count(ctx context.Context) (int, error) {
	database, err := s.open(ctx)
	if err != nil {
		return 0, err
	}
	defer database.Close()

	var count int
	if err := database.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
