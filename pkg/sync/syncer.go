package sync

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/config"
	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/db"
	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/strava"
)

// tokenExpiryMargin keeps us from starting a page walk with a token that
// expires mid-fetch.
const tokenExpiryMargin = 300 * time.Second

// Syncer reconciles the local activity table against Strava for linked
// members. Every failure mode degrades to skip-and-continue at the smallest
// unit (page, account, single row) so one bad account cannot block the rest.
type Syncer struct {
	cfg      config.StravaConfig
	client   *strava.Client
	database *gorm.DB
}

func New(cfg config.StravaConfig, client *strava.Client, database *gorm.DB) *Syncer {
	return &Syncer{
		cfg:      cfg,
		client:   client,
		database: database,
	}
}

// EnsureFreshToken returns a usable access token for the link, refreshing
// and persisting a new token pair only when the stored one is within the
// expiry margin. On refresh failure the stored row is left untouched.
func (s *Syncer) EnsureFreshToken(ctx context.Context, link *db.StravaLink) (string, error) {
	if link.ExpiresAt > time.Now().Add(tokenExpiryMargin).Unix() {
		return link.AccessToken, nil
	}

	tokenResp, err := s.client.Refresh(ctx, link.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token for user %d: %w", link.UserID, err)
	}

	link.AccessToken = tokenResp.AccessToken
	link.RefreshToken = tokenResp.RefreshToken
	link.ExpiresAt = tokenResp.ExpiresAt
	if tokenResp.Athlete != nil {
		link.FirstName = tokenResp.Athlete.Firstname
		link.LastName = tokenResp.Athlete.Lastname
		link.AvatarURL = tokenResp.Athlete.Profile
	}

	if err := s.database.Save(link).Error; err != nil {
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	return link.AccessToken, nil
}

func isRunActivity(sportType string) bool {
	return sportType == "Run" || sportType == "TrailRun"
}

// fetchRunActivities pages through the athlete's activities and keeps only
// runs. A short page ends the walk; a failed page is logged and treated the
// same way, so an upstream error truncates rather than aborts.
func (s *Syncer) fetchRunActivities(ctx context.Context, accessToken string) []strava.SummaryActivity {
	perPage := s.cfg.PageSize
	if perPage <= 0 {
		perPage = 200
	}
	maxPages := s.cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 50
	}

	var runs []strava.SummaryActivity
	for page := 1; page <= maxPages; page++ {
		batch, err := s.client.ListActivities(ctx, accessToken, page, perPage)
		if err != nil {
			log.Errorf("Failed to fetch activities page %d: %v", page, err)
			batch = nil
		}

		for _, activity := range batch {
			if isRunActivity(activity.SportType) {
				runs = append(runs, activity)
			}
		}

		if len(batch) < perPage {
			break
		}
	}

	return runs
}

func (s *Syncer) upsertActivity(userID uint, activity strava.SummaryActivity) error {
	var existing db.Activity
	result := s.database.First(&existing, "strava_id = ?", activity.ID)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			row := db.Activity{
				StravaID:   activity.ID,
				UserID:     userID,
				Name:       activity.Name,
				Distance:   activity.Distance,
				MovingTime: activity.MovingTime,
				SportType:  activity.SportType,
				Polyline:   activity.Map.SummaryPolyline,
				StartDate:  activity.StartDate,
			}
			return s.database.Create(&row).Error
		}
		return fmt.Errorf("failed to check existing activity: %w", result.Error)
	}

	return s.database.Model(&db.Activity{}).
		Where("strava_id = ?", activity.ID).
		Updates(map[string]interface{}{
			"name":        activity.Name,
			"distance":    activity.Distance,
			"moving_time": activity.MovingTime,
			"sport_type":  activity.SportType,
			"polyline":    activity.Map.SummaryPolyline,
			"start_date":  activity.StartDate,
		}).Error
}

// SyncAccount refreshes the link's credential, pulls the full run history
// and reconciles it into the activity table. Returns the number of rows
// upserted. A refresh failure aborts the whole attempt before any fetch.
func (s *Syncer) SyncAccount(ctx context.Context, link *db.StravaLink) (int, error) {
	accessToken, err := s.EnsureFreshToken(ctx, link)
	if err != nil {
		return 0, err
	}

	activities := s.fetchRunActivities(ctx, accessToken)

	synced := 0
	for _, activity := range activities {
		if err := s.upsertActivity(link.UserID, activity); err != nil {
			log.Errorf("Failed to upsert activity %d for user %d: %v", activity.ID, link.UserID, err)
			continue
		}
		synced++
	}

	return synced, nil
}

// SyncAll runs SyncAccount for every linked member, sequentially. Account
// failures are logged and do not stop the loop.
func (s *Syncer) SyncAll(ctx context.Context) {
	var links []db.StravaLink
	if err := s.database.Find(&links).Error; err != nil {
		log.Errorf("Failed to list strava links: %v", err)
		return
	}

	for i := range links {
		synced, err := s.SyncAccount(ctx, &links[i])
		if err != nil {
			log.Errorf("Failed to sync user %d: %v", links[i].UserID, err)
			continue
		}
		log.Infof("Synced %d activities for user %d", synced, links[i].UserID)
	}
}
