package admin

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tidwall/gjson"

	"github.com/appmaster-cloud/gateway/internal/audit"
	"github.com/appmaster-cloud/gateway/internal/logging"
	supa "github.com/appmaster-cloud/gateway/supabase/client"
)

// Sweeper periodically removes directory rows whose auth identity no longer
// exists. Provisioning self-heals these on retry, but a sweep keeps rows from
// lingering when nobody retries.
type Sweeper struct {
	db     *supa.Client
	auth   *supa.AdminClient
	audit  *audit.Log
	logger *logging.Logger
	cron   *cron.Cron

	// batchSize caps the rows examined per run so a sweep never hammers
	// the auth admin API.
	batchSize int
}

func NewSweeper(db *supa.Client, auditLog *audit.Log, logger *logging.Logger) *Sweeper {
	return &Sweeper{
		db:        db,
		auth:      db.Auth().Admin(),
		audit:     auditLog,
		logger:    logger,
		cron:      cron.New(),
		batchSize: 200,
	}
}

// Start schedules the sweep with the given cron expression and begins the
// scheduler.
func (s *Sweeper) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.Sweep(ctx); err != nil {
			s.logger.WithError(err).Error("orphan sweep failed")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep scans organization user rows and deletes those whose auth identity
// is gone.
func (s *Sweeper) Sweep(ctx context.Context) error {
	resp, err := s.db.From("users").
		Select("id,auth_user_id,email,organisation_id").
		Eq("user_type", "organization").
		Order("created_at.asc").
		Limit(s.batchSize).
		Execute(ctx)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}

	var removed int
	for _, row := range gjson.ParseBytes(resp.Body).Array() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		authID := row.Get("auth_user_id").String()
		if authID == "" {
			continue
		}
		authUser, err := s.auth.GetUserByID(ctx, authID)
		if err != nil {
			// Transient lookup failure is not evidence of an orphan.
			s.logger.WithError(err).WithField("auth_user", authID).Warn("orphan check skipped")
			continue
		}
		if authUser != nil {
			continue
		}

		rowID := row.Get("id").String()
		delResp, err := s.db.From("users").Eq("id", rowID).ExecuteDelete(ctx)
		if err == nil {
			err = delResp.Err()
		}
		if err != nil {
			s.logger.WithError(err).WithField("user_row", rowID).Warn("orphan delete failed")
			continue
		}

		removed++
		s.logger.WithFields(map[string]interface{}{
			"user_row": rowID,
			"email":    row.Get("email").String(),
		}).Info("orphaned user record removed")
		s.audit.Record(audit.Entry{
			Action:   audit.ActionOrphanSweep,
			TargetID: rowID,
			Tenant:   row.Get("organisation_id").String(),
			Outcome:  "removed",
		})
	}

	if removed > 0 {
		s.logger.WithField("removed", removed).Info("orphan sweep complete")
	}
	return nil
}
