package output

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ResultRow is the SQLite shape of a Record.
type ResultRow struct {
	ID            uint   `gorm:"primaryKey"`
	RunID         string `gorm:"index;size:26"`
	ItemIndex     int
	Name          string `gorm:"index"`
	Outcome       string
	StatusCode    *int
	Error         *string
	ErrorKind     string
	ElapsedMs     float64
	AttemptCount  int
	Interrupted   bool
	ArtifactError string
	CreatedAt     time.Time
}

func (ResultRow) TableName() string {
	return "results"
}

// DBSink records results in a SQLite database through gorm.
type DBSink struct {
	db *gorm.DB
}

// OpenDB opens (or creates) the database at path and migrates the schema.
func OpenDB(path string, log zerolog.Logger) (*DBSink, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: NewGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	if err := db.AutoMigrate(&ResultRow{}); err != nil {
		return nil, fmt.Errorf("migrate results db: %w", err)
	}
	return &DBSink{db: db}, nil
}

func (s *DBSink) Write(rec Record) error {
	row := ResultRow{
		RunID:         rec.RunID,
		ItemIndex:     rec.Index,
		Name:          rec.Name,
		Outcome:       rec.Outcome,
		StatusCode:    rec.StatusCode,
		Error:         rec.Error,
		ErrorKind:     rec.ErrorKind,
		ElapsedMs:     rec.ElapsedMs,
		AttemptCount:  rec.AttemptCount,
		Interrupted:   rec.Interrupted,
		ArtifactError: rec.ArtifactError,
	}
	return s.db.Create(&row).Error
}

// Rows returns the rows recorded for runID ordered by item index.
func (s *DBSink) Rows(runID string) ([]ResultRow, error) {
	var rows []ResultRow
	err := s.db.Where("run_id = ?", runID).Order("item_index").Find(&rows).Error
	return rows, err
}

func (s *DBSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GormLogger routes gorm's log output through zerolog.
type GormLogger struct {
	log      zerolog.Logger
	LogLevel logger.LogLevel
}

// NewGormLogger creates a GormLogger that reports warnings and errors.
func NewGormLogger(log zerolog.Logger) *GormLogger {
	return &GormLogger{log: log, LogLevel: logger.Warn}
}

// LogMode sets the log level.
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Info {
		l.log.Info().Msgf(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Warn {
		l.log.Warn().Msgf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Error {
		l.log.Error().Msgf(msg, data...)
	}
}

// Trace logs SQL statements: errors always, slow queries as warnings and
// everything else at debug.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && l.LogLevel >= logger.Error:
		l.log.Error().Err(err).Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("sql failed")
	case elapsed > time.Second && l.LogLevel >= logger.Warn:
		l.log.Warn().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("slow sql")
	case l.LogLevel == logger.Info:
		l.log.Debug().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("sql")
	}
}
