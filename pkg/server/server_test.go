package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-polyline"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/authz"
	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/config"
	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/db"
	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/strava"
	clubsync "github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/sync"
)

func buildTestServer(t *testing.T, cfg *config.Config) (*Server, *gin.Engine) {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	cfg.Uploads.Dir = t.TempDir()

	client := strava.NewClient(cfg.Strava)
	syncer := clubsync.New(cfg.Strava, client, database)
	worker := clubsync.NewWorker(syncer)

	srv := New(cfg, database, client, syncer, worker)
	return srv, srv.Router()
}

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	return buildTestServer(t, config.Default())
}

// newStravaTestServer points the OAuth and activity endpoints at a local
// fake so the connect/callback flow can run end to end.
func newStravaTestServer(t *testing.T, handler http.Handler) (*Server, *gin.Engine) {
	t.Helper()

	fake := httptest.NewServer(handler)
	t.Cleanup(fake.Close)

	cfg := config.Default()
	cfg.Strava.ClientID = "client-123"
	cfg.Strava.ClientSecret = "secret-456"
	cfg.Strava.AuthorizeURL = fake.URL + "/oauth/authorize"
	cfg.Strava.TokenURL = fake.URL + "/oauth/token"
	cfg.Strava.ActivitiesURL = fake.URL + "/api/v3/athlete/activities"

	return buildTestServer(t, cfg)
}

func doRequest(router *gin.Engine, method, path string, body []byte, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func loginAsAdmin(t *testing.T, srv *Server, router *gin.Engine) *http.Cookie {
	t.Helper()

	authzApp := &authz.AuthzApp{DB: srv.db}
	authzApp.Init()

	body, _ := json.Marshal(gin.H{"username": "admin", "password": "admin"})
	w := doRequest(router, "POST", "/api/auth/login", body)
	if w.Code != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", w.Code, w.Body.String())
	}

	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "session_token" {
			return cookie
		}
	}
	t.Fatal("no session cookie returned from login")
	return nil
}

func TestHealthCheck(t *testing.T) {
	testify := assert.New(t)
	_, router := newTestServer(t)

	w := doRequest(router, "GET", "/api/health", nil)

	testify.Equal(http.StatusOK, w.Code)
	testify.Contains(w.Body.String(), "healthy")
}

func TestLeaderboardRejectsBadFilters(t *testing.T) {
	testify := assert.New(t)
	_, router := newTestServer(t)

	w := doRequest(router, "GET", "/api/leaderboard?year=banana", nil)
	testify.Equal(http.StatusBadRequest, w.Code)

	w = doRequest(router, "GET", "/api/leaderboard?month=13", nil)
	testify.Equal(http.StatusBadRequest, w.Code)

	w = doRequest(router, "GET", "/api/leaderboard?month=0", nil)
	testify.Equal(http.StatusBadRequest, w.Code)
}

func TestLeaderboardReturnsEntries(t *testing.T) {
	testify := assert.New(t)
	srv, router := newTestServer(t)

	srv.db.Create(&db.StravaLink{
		UserID: 1, AthleteID: 100,
		AccessToken: "a", RefreshToken: "r",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
		FirstName: "Anna",
	})
	srv.db.Create(&db.Activity{
		StravaID: 1, UserID: 1, Name: "Run",
		Distance: 5000, MovingTime: 1500, SportType: "Run",
		StartDate: time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC),
	})

	w := doRequest(router, "GET", "/api/leaderboard?year=2024", nil)

	testify.Equal(http.StatusOK, w.Code)

	var resp struct {
		Entries []struct {
			UserID        uint   `json:"user_id"`
			FirstName     string `json:"first_name"`
			TotalDistance int64  `json:"total_distance"`
		} `json:"entries"`
	}
	testify.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	testify.Len(resp.Entries, 1)
	testify.Equal("Anna", resp.Entries[0].FirstName)
	testify.Equal(int64(5000), resp.Entries[0].TotalDistance)
}

func TestPaceEndpoint(t *testing.T) {
	testify := assert.New(t)
	_, router := newTestServer(t)

	w := doRequest(router, "GET", "/api/pace?distance_m=5000&time=25:00", nil)
	testify.Equal(http.StatusOK, w.Code)
	testify.Contains(w.Body.String(), `"pace_per_km":"5:00"`)

	w = doRequest(router, "GET", "/api/pace?distance_m=5000&time=nonsense", nil)
	testify.Equal(http.StatusBadRequest, w.Code)

	w = doRequest(router, "GET", "/api/pace?distance_m=0&time=25:00", nil)
	testify.Equal(http.StatusBadRequest, w.Code)
}

func TestActivityRouteDecodesPolyline(t *testing.T) {
	testify := assert.New(t)
	srv, router := newTestServer(t)

	coords := [][]float64{{55.6761, 12.5683}, {55.6765, 12.5690}}
	encoded := polyline.EncodeCoords(coords)

	srv.db.Create(&db.Activity{
		StravaID: 42, UserID: 1, Name: "City loop",
		Distance: 5000, MovingTime: 1500, SportType: "Run",
		Polyline:  string(encoded),
		StartDate: time.Now(),
	})

	w := doRequest(router, "GET", "/api/activities/42/route", nil)

	testify.Equal(http.StatusOK, w.Code)

	var resp struct {
		StravaID int64       `json:"strava_id"`
		Route    [][]float64 `json:"route"`
	}
	testify.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	testify.Equal(int64(42), resp.StravaID)
	testify.Len(resp.Route, 2)
	testify.InDelta(55.6761, resp.Route[0][0], 0.0001)

	w = doRequest(router, "GET", "/api/activities/999/route", nil)
	testify.Equal(http.StatusNotFound, w.Code)
}

func TestActivityRouteWithoutPolyline(t *testing.T) {
	testify := assert.New(t)
	srv, router := newTestServer(t)

	srv.db.Create(&db.Activity{
		StravaID: 7, UserID: 1, Name: "Treadmill",
		Distance: 5000, MovingTime: 1500, SportType: "Run",
		StartDate: time.Now(),
	})

	w := doRequest(router, "GET", "/api/activities/7/route", nil)
	testify.Equal(http.StatusNotFound, w.Code)
}

func TestAdminEndpointsRequireAuth(t *testing.T) {
	testify := assert.New(t)
	_, router := newTestServer(t)

	w := doRequest(router, "POST", "/api/admin/strava/sync?user_id=1", nil)
	testify.Equal(http.StatusUnauthorized, w.Code)

	body, _ := json.Marshal(gin.H{"title": "Spring run", "starts_at": time.Now()})
	w = doRequest(router, "POST", "/api/admin/events", body)
	testify.Equal(http.StatusUnauthorized, w.Code)
}

func TestEventLifecycle(t *testing.T) {
	testify := assert.New(t)
	srv, router := newTestServer(t)
	cookie := loginAsAdmin(t, srv, router)

	body, _ := json.Marshal(gin.H{
		"title":     "Saturday Morning Run",
		"body":      "Meet at the **brewery**.",
		"location":  "Copenhagen",
		"starts_at": time.Now().Add(48 * time.Hour),
		"distances": "5k,10k",
		"published": true,
	})
	w := doRequest(router, "POST", "/api/admin/events", body, cookie)
	testify.Equal(http.StatusCreated, w.Code)

	w = doRequest(router, "GET", "/api/events?upcoming=true", nil)
	testify.Equal(http.StatusOK, w.Code)
	testify.Contains(w.Body.String(), "Saturday Morning Run")

	w = doRequest(router, "GET", "/api/events/saturday-morning-run", nil)
	testify.Equal(http.StatusOK, w.Code)
	var eventResp map[string]any
	testify.NoError(json.Unmarshal(w.Body.Bytes(), &eventResp))
	testify.Contains(eventResp["html"], "<strong>brewery</strong>")

	w = doRequest(router, "GET", "/api/events/no-such-event", nil)
	testify.Equal(http.StatusNotFound, w.Code)
}

func TestNewsPublishingAndFeed(t *testing.T) {
	testify := assert.New(t)
	srv, router := newTestServer(t)
	cookie := loginAsAdmin(t, srv, router)

	body, _ := json.Marshal(gin.H{"title": "Club News", "body": "We run.", "publish": true})
	w := doRequest(router, "POST", "/api/admin/news", body, cookie)
	testify.Equal(http.StatusCreated, w.Code)

	body, _ = json.Marshal(gin.H{"title": "Unpublished Draft", "body": "Secret.", "publish": false})
	w = doRequest(router, "POST", "/api/admin/news", body, cookie)
	testify.Equal(http.StatusCreated, w.Code)

	w = doRequest(router, "GET", "/api/news", nil)
	testify.Equal(http.StatusOK, w.Code)
	testify.Contains(w.Body.String(), "Club News")
	testify.NotContains(w.Body.String(), "Unpublished Draft")

	w = doRequest(router, "GET", "/api/news/unpublished-draft", nil)
	testify.Equal(http.StatusNotFound, w.Code)

	w = doRequest(router, "GET", "/api/news/feed.xml", nil)
	testify.Equal(http.StatusOK, w.Code)
	testify.Contains(w.Header().Get("Content-Type"), "application/rss+xml")
	testify.Contains(w.Body.String(), "Club News")

	w = doRequest(router, "GET", "/api/news/feed.atom", nil)
	testify.Equal(http.StatusOK, w.Code)
	testify.Contains(w.Header().Get("Content-Type"), "application/atom+xml")
}

func TestProductCreationAndListing(t *testing.T) {
	testify := assert.New(t)
	srv, router := newTestServer(t)
	cookie := loginAsAdmin(t, srv, router)

	body, _ := json.Marshal(gin.H{
		"name":        "Club Singlet",
		"description": "Lightweight race singlet",
		"price_cents": 25000,
		"sizes":       "S,M,L,XL",
		"in_stock":    true,
	})
	w := doRequest(router, "POST", "/api/admin/products", body, cookie)
	testify.Equal(http.StatusCreated, w.Code)
	testify.Contains(w.Body.String(), `"slug":"club-singlet"`)

	w = doRequest(router, "GET", "/api/products", nil)
	testify.Equal(http.StatusOK, w.Code)
	testify.Contains(w.Body.String(), "Club Singlet")
}

func TestEventUpdateAndDelete(t *testing.T) {
	testify := assert.New(t)
	srv, router := newTestServer(t)
	cookie := loginAsAdmin(t, srv, router)

	body, _ := json.Marshal(gin.H{
		"title":     "Tempo Thursday",
		"starts_at": time.Now().Add(24 * time.Hour),
		"published": true,
	})
	w := doRequest(router, "POST", "/api/admin/events", body, cookie)
	testify.Equal(http.StatusCreated, w.Code)

	var created struct {
		Event db.Event `json:"event"`
	}
	testify.NoError(json.Unmarshal(w.Body.Bytes(), &created))

	body, _ = json.Marshal(gin.H{
		"title":     "Tempo Thursday (moved)",
		"location":  "The Lakes",
		"starts_at": time.Now().Add(72 * time.Hour),
		"published": true,
	})
	w = doRequest(router, "PUT", fmt.Sprintf("/api/admin/events/%d", created.Event.ID), body, cookie)
	testify.Equal(http.StatusOK, w.Code)

	// slug survives the title change
	w = doRequest(router, "GET", "/api/events/tempo-thursday", nil)
	testify.Equal(http.StatusOK, w.Code)
	testify.Contains(w.Body.String(), "The Lakes")

	w = doRequest(router, "DELETE", fmt.Sprintf("/api/admin/events/%d", created.Event.ID), nil, cookie)
	testify.Equal(http.StatusOK, w.Code)

	w = doRequest(router, "GET", "/api/events/tempo-thursday", nil)
	testify.Equal(http.StatusNotFound, w.Code)

	w = doRequest(router, "DELETE", "/api/admin/events/999", nil, cookie)
	testify.Equal(http.StatusNotFound, w.Code)
}

func TestNewsUpdateAndDelete(t *testing.T) {
	testify := assert.New(t)
	srv, router := newTestServer(t)
	cookie := loginAsAdmin(t, srv, router)

	body, _ := json.Marshal(gin.H{"title": "Race Report", "body": "Draft.", "publish": true})
	w := doRequest(router, "POST", "/api/admin/news", body, cookie)
	testify.Equal(http.StatusCreated, w.Code)

	var created struct {
		Post db.NewsPost `json:"post"`
	}
	testify.NoError(json.Unmarshal(w.Body.Bytes(), &created))

	// unpublishing pulls the post from the public listing
	body, _ = json.Marshal(gin.H{"title": "Race Report", "body": "Final.", "publish": false})
	w = doRequest(router, "PUT", fmt.Sprintf("/api/admin/news/%d", created.Post.ID), body, cookie)
	testify.Equal(http.StatusOK, w.Code)

	w = doRequest(router, "GET", "/api/news", nil)
	testify.NotContains(w.Body.String(), "Race Report")

	w = doRequest(router, "DELETE", fmt.Sprintf("/api/admin/news/%d", created.Post.ID), nil, cookie)
	testify.Equal(http.StatusOK, w.Code)

	var count int64
	srv.db.Model(&db.NewsPost{}).Count(&count)
	testify.Zero(count)
}

func TestProductUpdateAndDelete(t *testing.T) {
	testify := assert.New(t)
	srv, router := newTestServer(t)
	cookie := loginAsAdmin(t, srv, router)

	body, _ := json.Marshal(gin.H{"name": "Club Cap", "price_cents": 15000, "in_stock": true})
	w := doRequest(router, "POST", "/api/admin/products", body, cookie)
	testify.Equal(http.StatusCreated, w.Code)

	var created struct {
		Product db.Product `json:"product"`
	}
	testify.NoError(json.Unmarshal(w.Body.Bytes(), &created))

	body, _ = json.Marshal(gin.H{"name": "Club Cap", "price_cents": 12000, "in_stock": false})
	w = doRequest(router, "PUT", fmt.Sprintf("/api/admin/products/%d", created.Product.ID), body, cookie)
	testify.Equal(http.StatusOK, w.Code)

	var stored db.Product
	testify.NoError(srv.db.First(&stored, created.Product.ID).Error)
	testify.Equal(12000, stored.PriceCents)
	testify.False(stored.InStock)

	w = doRequest(router, "DELETE", fmt.Sprintf("/api/admin/products/%d", created.Product.ID), nil, cookie)
	testify.Equal(http.StatusOK, w.Code)

	w = doRequest(router, "GET", "/api/products", nil)
	testify.NotContains(w.Body.String(), "Club Cap")
}

func TestManualSyncValidation(t *testing.T) {
	testify := assert.New(t)
	srv, router := newTestServer(t)
	cookie := loginAsAdmin(t, srv, router)

	w := doRequest(router, "POST", "/api/admin/strava/sync?user_id=abc", nil, cookie)
	testify.Equal(http.StatusBadRequest, w.Code)

	w = doRequest(router, "POST", "/api/admin/strava/sync?user_id=99", nil, cookie)
	testify.Equal(http.StatusNotFound, w.Code)
}

func stravaFakeHandler(athleteID int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(gin.H{
				"access_token":  "access-new",
				"refresh_token": "refresh-new",
				"expires_at":    time.Now().Add(6 * time.Hour).Unix(),
				"athlete": gin.H{
					"id":        athleteID,
					"firstname": "Mikkel",
					"lastname":  "Borg",
					"profile":   "https://cdn/avatar.jpg",
				},
			})
		case "/api/v3/athlete/activities":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode([]gin.H{{
				"id": 9001, "name": "First Run", "distance": 5000.0,
				"moving_time": 1500, "sport_type": "Run",
				"start_date": "2024-03-01T07:00:00Z",
				"map":        gin.H{"summary_polyline": ""},
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func TestStravaCallbackCreatesLinkAndQueuesFirstSync(t *testing.T) {
	testify := assert.New(t)
	srv, router := newStravaTestServer(t, stravaFakeHandler(42))
	go srv.worker.Run(context.Background())

	cookie := loginAsAdmin(t, srv, router)
	state := &http.Cookie{Name: "strava_state", Value: "xyz"}

	w := doRequest(router, "GET", "/api/strava/callback?code=abc&state=xyz", nil, cookie, state)

	testify.Equal(http.StatusFound, w.Code)
	testify.Equal("/?strava=connected", w.Header().Get("Location"))

	var admin db.User
	testify.NoError(srv.db.First(&admin, "username = ?", "admin").Error)

	var link db.StravaLink
	testify.NoError(srv.db.First(&link, "athlete_id = ?", 42).Error)
	testify.Equal(admin.ID, link.UserID)
	testify.Equal("access-new", link.AccessToken)
	testify.Equal("refresh-new", link.RefreshToken)
	testify.Equal("Mikkel", link.FirstName)

	// the new link's first sync runs in the background worker
	testify.Eventually(func() bool {
		var count int64
		srv.db.Model(&db.Activity{}).Where("strava_id = ?", 9001).Count(&count)
		return count == 1
	}, 2*time.Second, 25*time.Millisecond)
}

func TestStravaCallbackRejectsStateMismatch(t *testing.T) {
	testify := assert.New(t)
	srv, router := newStravaTestServer(t, stravaFakeHandler(42))

	cookie := loginAsAdmin(t, srv, router)
	state := &http.Cookie{Name: "strava_state", Value: "expected"}

	w := doRequest(router, "GET", "/api/strava/callback?code=abc&state=forged", nil, cookie, state)
	testify.Equal(http.StatusBadRequest, w.Code)

	w = doRequest(router, "GET", "/api/strava/callback?state=xyz", nil, cookie, state)
	testify.Equal(http.StatusBadRequest, w.Code)
}

func TestStravaCallbackRequiresLogin(t *testing.T) {
	testify := assert.New(t)
	_, router := newStravaTestServer(t, stravaFakeHandler(42))

	w := doRequest(router, "GET", "/api/strava/callback?code=abc&state=xyz", nil)

	testify.Equal(http.StatusFound, w.Code)
	testify.Equal("/?strava=login_required", w.Header().Get("Location"))
}

func TestStravaCallbackRejectsConflictingRelink(t *testing.T) {
	testify := assert.New(t)
	srv, router := newStravaTestServer(t, stravaFakeHandler(42))

	cookie := loginAsAdmin(t, srv, router)
	state := &http.Cookie{Name: "strava_state", Value: "xyz"}

	var admin db.User
	testify.NoError(srv.db.First(&admin, "username = ?", "admin").Error)

	// the member already linked a different athlete
	srv.db.Create(&db.StravaLink{
		UserID: admin.ID, AthleteID: 999,
		AccessToken: "keep-access", RefreshToken: "keep-refresh",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})

	w := doRequest(router, "GET", "/api/strava/callback?code=abc&state=xyz", nil, cookie, state)

	testify.Equal(http.StatusFound, w.Code)
	testify.Equal("/?strava=already_linked", w.Header().Get("Location"))

	var link db.StravaLink
	testify.NoError(srv.db.First(&link, "user_id = ?", admin.ID).Error)
	testify.Equal(int64(999), link.AthleteID)
	testify.Equal("keep-access", link.AccessToken)
}

func TestStravaCallbackRejectsAthleteLinkedToAnotherMember(t *testing.T) {
	testify := assert.New(t)
	srv, router := newStravaTestServer(t, stravaFakeHandler(42))

	cookie := loginAsAdmin(t, srv, router)
	state := &http.Cookie{Name: "strava_state", Value: "xyz"}

	// athlete 42 already belongs to another member
	srv.db.Create(&db.User{Username: "runner2", Email: "runner2@localhost"})
	var other db.User
	testify.NoError(srv.db.First(&other, "username = ?", "runner2").Error)
	srv.db.Create(&db.StravaLink{
		UserID: other.ID, AthleteID: 42,
		AccessToken: "other-access", RefreshToken: "other-refresh",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})

	w := doRequest(router, "GET", "/api/strava/callback?code=abc&state=xyz", nil, cookie, state)

	testify.Equal(http.StatusFound, w.Code)
	testify.Equal("/?strava=already_linked", w.Header().Get("Location"))

	var link db.StravaLink
	testify.NoError(srv.db.First(&link, "athlete_id = ?", 42).Error)
	testify.Equal(other.ID, link.UserID)
	testify.Equal("other-access", link.AccessToken)
}

func TestStravaConnectWithoutCredentials(t *testing.T) {
	testify := assert.New(t)
	_, router := newTestServer(t)

	// default config carries no client id or secret
	w := doRequest(router, "GET", "/api/strava/connect", nil)

	testify.Equal(http.StatusFound, w.Code)
	testify.Equal("/?strava=error", w.Header().Get("Location"))
}
