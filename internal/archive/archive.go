// Package archive is the optional local telemetry store for the headless
// watcher: received match snapshots and submitted stakes, kept in a SQLite
// file so a session can be inspected after the fact.
package archive

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arenalive/arenalive/internal/config"
	"github.com/arenalive/arenalive/internal/stream"
)

// SnapshotRecord is one persisted match snapshot.
type SnapshotRecord struct {
	ID        uint   `gorm:"primarykey"`
	SessionID string `gorm:"index"`
	MatchID   string `gorm:"index"`
	Round     int
	Timer     int
	HealthA   int
	HealthB   int
	Status    string
	OddsA     float64
	OddsB     float64
	PoolTotal uint64
	CreatedAt time.Time
}

// StakeRecord is one persisted stake submission.
type StakeRecord struct {
	ID               uint   `gorm:"primarykey"`
	MatchID          string `gorm:"index"`
	Bettor           string
	Side             string
	AmountMinorUnits uint64
	TxSignature      string
	CreatedAt        time.Time
}

// Archive wraps the GORM connection.
type Archive struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open opens (or creates) the archive database and runs migrations.
func Open(cfg config.ArchiveConfig, log *slog.Logger) (*Archive, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", cfg.Path, err)
	}

	if err := db.AutoMigrate(&SnapshotRecord{}, &StakeRecord{}); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}

	log.Debug("archive open", slog.String("path", cfg.Path))
	return &Archive{db: db, log: log}, nil
}

// SaveSnapshot persists one snapshot under a session ID.
func (a *Archive) SaveSnapshot(sessionID string, snap *stream.Snapshot) error {
	rec := SnapshotRecord{
		SessionID: sessionID,
		MatchID:   snap.MatchID,
		Round:     snap.Round,
		Timer:     snap.Timer,
		HealthA:   snap.HealthA,
		HealthB:   snap.HealthB,
		Status:    snap.Status,
		OddsA:     snap.OddsA,
		OddsB:     snap.OddsB,
		PoolTotal: snap.PoolTotal,
	}
	if err := a.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// SaveStake persists a submitted stake.
func (a *Archive) SaveStake(rec StakeRecord) error {
	if err := a.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("save stake: %w", err)
	}
	return nil
}

// Snapshots returns the snapshots for a match, oldest first, capped at limit
// (0 means no cap).
func (a *Archive) Snapshots(matchID string, limit int) ([]SnapshotRecord, error) {
	var out []SnapshotRecord
	q := a.db.Where("match_id = ?", matchID).Order("id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	return out, nil
}

// Stakes returns the stakes recorded for a match.
func (a *Archive) Stakes(matchID string) ([]StakeRecord, error) {
	var out []StakeRecord
	if err := a.db.Where("match_id = ?", matchID).Order("id asc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("load stakes: %w", err)
	}
	return out, nil
}

// Close releases the underlying connection.
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
