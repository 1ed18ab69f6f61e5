package leaderboard

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/db"
)

// Entry is one ranked row: a member's aggregate run totals joined with the
// profile fields from their Strava link.
type Entry struct {
	UserID          uint   `json:"user_id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	AvatarURL       string `json:"avatar_url"`
	TotalDistance   int64  `json:"total_distance"`
	ActivityCount   int    `json:"activity_count"`
	TotalMovingTime int64  `json:"total_moving_time"`
}

// Compute ranks members by total distance, optionally restricted to a
// calendar year and/or month. Activities whose owner has no Strava link are
// dropped by the inner join. Ties break by activity count, then user id,
// so the ordering is deterministic.
func Compute(database *gorm.DB, year, month *int) ([]Entry, error) {
	query := database.Model(&db.Activity{}).
		Select(`activities.user_id AS user_id,
			strava_links.first_name AS first_name,
			strava_links.last_name AS last_name,
			strava_links.avatar_url AS avatar_url,
			CAST(ROUND(SUM(activities.distance)) AS INTEGER) AS total_distance,
			COUNT(activities.strava_id) AS activity_count,
			SUM(activities.moving_time) AS total_moving_time`).
		Joins("JOIN strava_links ON strava_links.user_id = activities.user_id").
		Group("activities.user_id, strava_links.first_name, strava_links.last_name, strava_links.avatar_url").
		Order("SUM(activities.distance) DESC, COUNT(activities.strava_id) DESC, activities.user_id ASC")

	if year != nil {
		query = query.Where("CAST(strftime('%Y', activities.start_date) AS INTEGER) = ?", *year)
	}
	if month != nil {
		query = query.Where("CAST(strftime('%m', activities.start_date) AS INTEGER) = ?", *month)
	}

	var entries []Entry
	if err := query.Scan(&entries).Error; err != nil {
		return nil, fmt.Errorf("leaderboard query failed: %w", err)
	}

	return entries, nil
}
