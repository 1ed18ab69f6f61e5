package sync

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/db"
)

// Job asks the worker to sync one member's account, or every account when
// UserID is zero.
type Job struct {
	UserID uint
}

// Worker drains a buffered job queue in the background. It exists so the
// OAuth callback can hand off a first sync without blocking the request;
// job failures are logged, never surfaced to the submitter.
type Worker struct {
	syncer *Syncer
	jobs   chan Job
}

func NewWorker(syncer *Syncer) *Worker {
	return &Worker{
		syncer: syncer,
		jobs:   make(chan Job, 100),
	}
}

// Enqueue submits a job without blocking. Returns false when the queue is
// full.
func (w *Worker) Enqueue(job Job) bool {
	select {
	case w.jobs <- job:
		return true
	default:
		log.Errorf("Sync queue full, dropping job for user %d", job.UserID)
		return false
	}
}

// Run processes jobs until the queue is closed.
func (w *Worker) Run(ctx context.Context) {
	log.Info("Starting sync worker loop")

	for job := range w.jobs {
		if job.UserID == 0 {
			w.syncer.SyncAll(ctx)
			continue
		}

		var link db.StravaLink
		if err := w.syncer.database.First(&link, "user_id = ?", job.UserID).Error; err != nil {
			log.Errorf("No strava link for user %d: %v", job.UserID, err)
			continue
		}

		synced, err := w.syncer.SyncAccount(ctx, &link)
		if err != nil {
			log.Errorf("Background sync for user %d failed: %v", job.UserID, err)
			continue
		}
		log.Infof("Background sync: %d activities for user %d", synced, job.UserID)
	}
}
