package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/skalibog/mprofile/pkg/logger"
	"github.com/skalibog/mprofile/pkg/models"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStorage хранит свечи и результаты анализа в файле SQLite
type SQLiteStorage struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStorage открывает (или создает) базу и выполняет миграции
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ошибка создания каталога базы: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия sqlite: %w", err)
	}
	// одно соединение: для :memory: каждое соединение видит свою базу
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка включения WAL: %w", err)
	}

	s := &SQLiteStorage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка миграции: %w", err)
	}

	logger.Info("Открыто хранилище SQLite", zap.String("path", path))
	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			symbol     TEXT    NOT NULL,
			interval   TEXT    NOT NULL,
			open_time  INTEGER NOT NULL,
			open       REAL,
			high       REAL,
			low        REAL,
			close      REAL,
			volume     REAL,
			close_time INTEGER,
			PRIMARY KEY (symbol, interval, open_time)
		)`,

		`CREATE TABLE IF NOT EXISTS tpo_analysis (
			id              TEXT    PRIMARY KEY,
			symbol          TEXT    NOT NULL,
			coin            TEXT    NOT NULL,
			analysis_date   INTEGER NOT NULL,
			interval        TEXT    NOT NULL,
			bracket_length  INTEGER NOT NULL,
			days_analyzed   INTEGER,
			rotation_score  INTEGER,
			control         TEXT,
			strength        TEXT,
			poc_score       INTEGER,
			poc_bias        TEXT,
			created_at      INTEGER NOT NULL,
			payload         BLOB,
			UNIQUE (symbol, coin, analysis_date, interval, bracket_length)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tpo_analysis_date ON tpo_analysis(analysis_date)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Close закрывает базу
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SaveCandles сохраняет свечи, существующие записи заменяются
func (s *SQLiteStorage) SaveCandles(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO candles
		(symbol, interval, open_time, open, high, low, close, volume, close_time)
		VALUES (?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx,
			c.Symbol, c.Interval, c.OpenTime.UnixMilli(),
			c.Open, c.High, c.Low, c.Close, c.Volume,
			c.CloseTime.UnixMilli(),
		); err != nil {
			return fmt.Errorf("ошибка записи свечи %s %s: %w", c.Symbol, c.OpenTime, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// GetCandles получает свечи за период по возрастанию времени
func (s *SQLiteStorage) GetCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT open_time, open, high, low, close, volume, close_time
		FROM candles
		WHERE symbol = ? AND interval = ? AND open_time >= ? AND open_time <= ?
		ORDER BY open_time`,
		symbol, interval, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса свечей: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var openMS, closeMS int64
		c := models.Candle{Symbol: symbol, Interval: interval}
		if err := rows.Scan(&openMS, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &closeMS); err != nil {
			return nil, fmt.Errorf("ошибка чтения свечи: %w", err)
		}
		c.OpenTime = time.UnixMilli(openMS).UTC()
		c.CloseTime = time.UnixMilli(closeMS).UTC()
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", err)
	}
	return candles, nil
}

// SaveAnalysis сохраняет результат анализа, запись с тем же ключом обновляется
func (s *SQLiteStorage) SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO tpo_analysis
		(id, symbol, coin, analysis_date, interval, bracket_length, days_analyzed,
		 rotation_score, control, strength, poc_score, poc_bias, created_at, payload)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (symbol, coin, analysis_date, interval, bracket_length) DO UPDATE SET
			days_analyzed  = excluded.days_analyzed,
			rotation_score = excluded.rotation_score,
			control        = excluded.control,
			strength       = excluded.strength,
			poc_score      = excluded.poc_score,
			poc_bias       = excluded.poc_bias,
			created_at     = excluded.created_at,
			payload        = excluded.payload`,
		rec.ID, rec.Symbol, rec.Coin, rec.AnalysisDate.UnixMilli(), rec.Interval, rec.BracketMinutes,
		rec.DaysAnalyzed, rec.RotationScore, string(rec.Control), string(rec.Strength),
		rec.POCScore, string(rec.POCBias), rec.CreatedAt.UnixMilli(), rec.Payload,
	)
	if err != nil {
		return fmt.Errorf("ошибка записи результата анализа: %w", err)
	}
	return nil
}

// GetAnalysisHistory получает историю анализов, новые первыми
func (s *SQLiteStorage) GetAnalysisHistory(ctx context.Context, f HistoryFilter) ([]models.AnalysisRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, f.Symbol)
	}
	if f.Interval != "" {
		where = append(where, "interval = ?")
		args = append(args, f.Interval)
	}
	if !f.From.IsZero() {
		where = append(where, "analysis_date >= ?")
		args = append(args, f.From.UnixMilli())
	}
	if !f.To.IsZero() {
		where = append(where, "analysis_date <= ?")
		args = append(args, f.To.UnixMilli())
	}

	query := `SELECT id, symbol, coin, analysis_date, interval, bracket_length, days_analyzed,
		rotation_score, control, strength, poc_score, poc_bias, created_at, payload
		FROM tpo_analysis`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY analysis_date DESC, symbol"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса истории анализов: %w", err)
	}
	defer rows.Close()

	var records []models.AnalysisRecord
	for rows.Next() {
		var (
			rec                     models.AnalysisRecord
			dateMS, createdMS       int64
			control, strength, bias string
		)
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Coin, &dateMS, &rec.Interval, &rec.BracketMinutes,
			&rec.DaysAnalyzed, &rec.RotationScore, &control, &strength, &rec.POCScore, &bias,
			&createdMS, &rec.Payload); err != nil {
			return nil, fmt.Errorf("ошибка чтения результата анализа: %w", err)
		}
		rec.AnalysisDate = time.UnixMilli(dateMS).UTC()
		rec.CreatedAt = time.UnixMilli(createdMS).UTC()
		rec.Control = models.ControlSide(control)
		rec.Strength = models.Strength(strength)
		rec.POCBias = models.Bias(bias)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", err)
	}
	return records, nil
}

// GetSymbols возвращает символы с сохраненными свечами
func (s *SQLiteStorage) GetSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM candles ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса символов: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("ошибка чтения символа: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}
