package jobs

import (
	"log/slog"
	"time"

	"github.com/opentranscribe/scribe-backend/internal/config"
	"github.com/opentranscribe/scribe-backend/internal/events"
	"github.com/opentranscribe/scribe-backend/internal/models"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Archiver is the background mutator of the archived flag: completed
// submissions age out of the queue views after the completed delay, and
// stale claims trigger UnclaimRequested nags toward the chat
// collaborator.
type Archiver struct {
	cron *cron.Cron
	db   *gorm.DB
	bus  events.Publisher
	cfg  *config.Config
	now  func() time.Time
}

func NewArchiver(db *gorm.DB, bus events.Publisher, cfg *config.Config) *Archiver {
	return &Archiver{
		cron: cron.New(cron.WithSeconds()),
		db:   db,
		bus:  bus,
		cfg:  cfg,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (a *Archiver) Start() error {
	if _, err := a.cron.AddFunc("0 */5 * * * *", a.Run); err != nil {
		return err
	}
	a.cron.Start()
	return nil
}

func (a *Archiver) Stop() {
	ctx := a.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

// Run executes one archiver pass. Exposed for tests and manual runs.
func (a *Archiver) Run() {
	a.archiveCompleted()
	a.nagStaleClaims()
}

func (a *Archiver) archiveCompleted() {
	now := a.now()
	result := a.db.Model(&models.Submission{}).
		Where("completed_by_id IS NOT NULL AND archived = ?", false).
		Where("complete_time < ?", now.Add(-a.cfg.ArchivistCompletedDelay)).
		Updates(map[string]interface{}{
			"archived":         true,
			"last_update_time": now,
		})
	if result.Error != nil {
		slog.Error("archiving completed submissions failed", "error", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		slog.Info("archived completed submissions", "count", result.RowsAffected)
	}
}

func (a *Archiver) nagStaleClaims() {
	var stale []models.Submission
	err := a.db.
		Where("claimed_by_id IS NOT NULL AND completed_by_id IS NULL").
		Where("archived = ? AND removed_from_queue = ?", false, false).
		Where("claim_time < ?", a.now().Add(-a.cfg.ArchivistDelay)).
		Find(&stale).Error
	if err != nil {
		slog.Error("stale claim scan failed", "error", err)
		return
	}

	for i := range stale {
		a.bus.Publish(events.Event{
			Kind:         events.KindUnclaimRequested,
			SubmissionID: stale[i].ID,
			UserID:       stale[i].ClaimedByID,
		})
	}
}
