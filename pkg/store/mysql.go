package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

// MySQLConfig holds MySQL connection configuration
type MySQLConfig struct {
	Host            string
	Port            int
	Database        string
	Username        string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SSLMode         string
}

// MySQLStore implements TranscriptStore against MySQL.
type MySQLStore struct {
	db     *sql.DB
	config MySQLConfig
	logger *logrus.Logger
}

// NewMySQLStore opens a MySQL connection pool and verifies connectivity.
func NewMySQLStore(config MySQLConfig, logger *logrus.Logger) (*MySQLStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
	)
	if config.SSLMode != "" {
		dsn += "&tls=" + config.SSLMode
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &MySQLStore{
		db:     db,
		config: config,
		logger: logger,
	}

	logger.WithFields(logrus.Fields{
		"host":     config.Host,
		"port":     config.Port,
		"database": config.Database,
	}).Info("Connected to MySQL database")

	return store, nil
}

// Close closes the database connection
func (s *MySQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health checks database health
func (s *MySQLStore) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Migrate creates the transcript and call tables when missing.
func (s *MySQLStore) Migrate() error {
	migrations := []string{createTranscriptsTable, createCallsTable}

	for i, migration := range migrations {
		s.logger.WithField("migration", i+1).Debug("Running migration")
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	s.logger.Info("Database migrations completed successfully")
	return nil
}

// GetTranscript fetches a transcript record by ID. A missing row yields
// (nil, nil).
func (s *MySQLStore) GetTranscript(ctx context.Context, id string) (*Transcript, error) {
	query := `SELECT id, call_id, text, duration, transcript_segments, call_score,
		sentiment, keywords, key_phrases, metadata, created_at, updated_at
		FROM transcripts WHERE id = ?`

	var (
		t            Transcript
		duration     sql.NullFloat64
		segments     sql.NullString
		callScore    sql.NullInt64
		sentiment    sql.NullString
		keywordsJSON sql.NullString
		phrasesJSON  sql.NullString
		metadataJSON sql.NullString
	)

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.CallID, &t.Text, &duration, &segments, &callScore,
		&sentiment, &keywordsJSON, &phrasesJSON, &metadataJSON,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}

	if duration.Valid {
		t.Duration = &duration.Float64
	}
	if segments.Valid {
		t.Segments = json.RawMessage(segments.String)
	}
	if callScore.Valid {
		score := int(callScore.Int64)
		t.CallScore = &score
	}
	if sentiment.Valid {
		t.Sentiment = &sentiment.String
	}
	if keywordsJSON.Valid {
		if err := json.Unmarshal([]byte(keywordsJSON.String), &t.Keywords); err != nil {
			s.logger.WithError(err).WithField("transcript_id", id).Warn("Failed to decode keywords column")
		}
	}
	if phrasesJSON.Valid {
		if err := json.Unmarshal([]byte(phrasesJSON.String), &t.KeyPhrases); err != nil {
			s.logger.WithError(err).WithField("transcript_id", id).Warn("Failed to decode key phrases column")
		}
	}
	if metadataJSON.Valid {
		t.Metadata = json.RawMessage(metadataJSON.String)
	}

	return &t, nil
}

// SaveAnalysis writes the analysis output back onto the transcript record.
func (s *MySQLStore) SaveAnalysis(ctx context.Context, id string, update AnalysisUpdate) error {
	keywordsJSON, err := json.Marshal(update.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}
	phrasesJSON, err := json.Marshal(update.KeyPhrases)
	if err != nil {
		return fmt.Errorf("failed to marshal key phrases: %w", err)
	}

	query := `UPDATE transcripts
		SET call_score = ?, sentiment = ?, keywords = ?, key_phrases = ?,
			transcript_segments = ?, metadata = ?, updated_at = NOW()
		WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		update.CallScore, update.Sentiment, string(keywordsJSON), string(phrasesJSON),
		string(update.SegmentsJSON), string(update.MetadataJSON), id,
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		s.logger.WithField("transcript_id", id).Warn("Analysis write matched no transcript row")
	}
	return nil
}

// UpdateCallMetrics writes the denormalized sentiment and talk-ratio columns
// onto the associated call record.
func (s *MySQLStore) UpdateCallMetrics(ctx context.Context, callID string, metrics CallMetrics) error {
	query := `UPDATE calls
		SET sentiment_agent = ?, sentiment_customer = ?,
			talk_ratio_agent = ?, talk_ratio_customer = ?, updated_at = NOW()
		WHERE id = ?`

	_, err := s.db.ExecContext(ctx, query,
		metrics.SentimentAgent, metrics.SentimentCustomer,
		metrics.TalkRatioAgent, metrics.TalkRatioCustomer, callID,
	)
	if err != nil {
		return fmt.Errorf("failed to update call metrics: %w", err)
	}
	return nil
}

// Database schema definitions
const createTranscriptsTable = `
CREATE TABLE IF NOT EXISTS transcripts (
	id VARCHAR(64) PRIMARY KEY,
	call_id VARCHAR(64) NOT NULL,
	text LONGTEXT NOT NULL,
	duration DOUBLE NULL,
	transcript_segments JSON NULL,
	call_score INT NULL,
	sentiment VARCHAR(16) NULL,
	keywords JSON NULL,
	key_phrases JSON NULL,
	metadata JSON NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	INDEX idx_transcripts_call_id (call_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const createCallsTable = `
CREATE TABLE IF NOT EXISTS calls (
	id VARCHAR(64) PRIMARY KEY,
	sentiment_agent INT NULL,
	sentiment_customer INT NULL,
	talk_ratio_agent INT NULL,
	talk_ratio_customer INT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
