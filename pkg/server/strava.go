package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/twpayne/go-polyline"
	"gorm.io/gorm"

	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/authz"
	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/db"
	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/leaderboard"
	clubsync "github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/sync"
)

// stravaConnectHandler sends the logged-in member to the Strava consent
// screen. Missing client credentials degrade to a redirect with an error
// flag rather than a server error.
func (s *Server) stravaConnectHandler(c *gin.Context) {
	if !s.cfg.Strava.Configured() {
		log.Error("Strava client credentials are not configured")
		c.Redirect(http.StatusFound, "/?strava=error")
		return
	}

	if _, ok := authz.GetCurrentUser(c); !ok {
		c.Redirect(http.StatusFound, "/?strava=login_required")
		return
	}

	state := uuid.New().String()
	c.SetCookie("strava_state", state, 600, "/", "", false, true)
	c.Redirect(http.StatusFound, s.client.AuthorizationURL(state))
}

// stravaCallbackHandler completes the OAuth handshake: exchanges the code,
// creates or updates the member's link and queues a first sync for newly
// created links.
func (s *Server) stravaCallbackHandler(c *gin.Context) {
	if errorParam := c.Query("error"); errorParam != "" {
		log.Infof("Strava authorization denied: %s", errorParam)
		c.Redirect(http.StatusFound, "/?strava=denied")
		return
	}

	user, ok := authz.GetCurrentUser(c)
	if !ok {
		c.Redirect(http.StatusFound, "/?strava=login_required")
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code parameter"})
		return
	}

	if cookieState, err := c.Cookie("strava_state"); err != nil || cookieState != c.Query("state") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state mismatch"})
		return
	}

	tokenResp, err := s.client.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		log.Errorf("Strava code exchange failed: %v", err)
		c.Redirect(http.StatusFound, "/?strava=error")
		return
	}
	if tokenResp.Athlete == nil {
		log.Error("Strava token response missing athlete profile")
		c.Redirect(http.StatusFound, "/?strava=error")
		return
	}

	// a member holds at most one link, and an athlete belongs to at most
	// one member; a conflicting re-link gets a precise flag instead of
	// tripping the unique indexes below
	var existing db.StravaLink
	if err := s.db.First(&existing, "user_id = ?", user.ID).Error; err == nil && existing.AthleteID != tokenResp.Athlete.ID {
		c.Redirect(http.StatusFound, "/?strava=already_linked")
		return
	}

	var link db.StravaLink
	result := s.db.First(&link, "athlete_id = ?", tokenResp.Athlete.ID)
	created := false
	if result.Error == nil && link.UserID != user.ID {
		c.Redirect(http.StatusFound, "/?strava=already_linked")
		return
	}
	if result.Error != nil {
		if result.Error != gorm.ErrRecordNotFound {
			log.Errorf("Failed to check existing strava link: %v", result.Error)
			c.Redirect(http.StatusFound, "/?strava=error")
			return
		}
		link = db.StravaLink{
			UserID:    user.ID,
			AthleteID: tokenResp.Athlete.ID,
		}
		created = true
	}

	link.AccessToken = tokenResp.AccessToken
	link.RefreshToken = tokenResp.RefreshToken
	link.ExpiresAt = tokenResp.ExpiresAt
	link.FirstName = tokenResp.Athlete.Firstname
	link.LastName = tokenResp.Athlete.Lastname
	link.AvatarURL = tokenResp.Athlete.Profile

	if err := s.db.Save(&link).Error; err != nil {
		log.Errorf("Failed to save strava link: %v", err)
		c.Redirect(http.StatusFound, "/?strava=error")
		return
	}

	if created {
		s.worker.Enqueue(clubsync.Job{UserID: link.UserID})
	}

	c.Redirect(http.StatusFound, "/?strava=connected")
}

// manualSyncHandler runs a synchronous sync for one member and reports the
// count synced.
func (s *Server) manualSyncHandler(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Query("user_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	var link db.StravaLink
	if err := s.db.First(&link, "user_id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no strava link for user"})
		return
	}

	synced, err := s.syncer.SyncAccount(c.Request.Context(), &link)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"synced": synced})
}

// leaderboardHandler validates the optional year/month filters and returns
// the ranked totals.
func (s *Server) leaderboardHandler(c *gin.Context) {
	var year, month *int

	if yearStr := c.Query("year"); yearStr != "" {
		y, err := strconv.Atoi(yearStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "year must be an integer"})
			return
		}
		year = &y
	}

	if monthStr := c.Query("month"); monthStr != "" {
		m, err := strconv.Atoi(monthStr)
		if err != nil || m < 1 || m > 12 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "month must be an integer between 1 and 12"})
			return
		}
		month = &m
	}

	entries, err := leaderboard.Compute(s.db, year, month)
	if err != nil {
		log.Errorf("Leaderboard query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute leaderboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// activityRouteHandler decodes the stored summary polyline into coordinate
// pairs for the map view.
func (s *Server) activityRouteHandler(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid activity id"})
		return
	}

	var activity db.Activity
	if err := s.db.First(&activity, "strava_id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "activity not found"})
		return
	}

	if activity.Polyline == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "activity has no route"})
		return
	}

	coords, _, err := polyline.DecodeCoords([]byte(activity.Polyline))
	if err != nil {
		log.Errorf("Failed to decode polyline for activity %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to decode route"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"strava_id": activity.StravaID,
		"name":      activity.Name,
		"route":     coords,
	})
}
