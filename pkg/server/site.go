package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/gorilla/feeds"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/db"
	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/pace"
)

func renderMarkdown(body string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return string(markdown.ToHTML([]byte(body), p, renderer))
}

// listEventsHandler returns published events. upcoming=true restricts to
// events that have not started yet, soonest first.
func (s *Server) listEventsHandler(c *gin.Context) {
	query := s.db.Where("published = ?", true)

	if c.Query("upcoming") == "true" {
		query = query.Where("starts_at > ?", time.Now()).Order("starts_at ASC")
	} else {
		query = query.Order("starts_at DESC")
	}

	var events []db.Event
	if err := query.Find(&events).Error; err != nil {
		log.Errorf("Failed to list events: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) getEventHandler(c *gin.Context) {
	var event db.Event
	result := s.db.First(&event, "slug = ? AND published = ?", c.Param("slug"), true)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		log.Errorf("Failed to load event: %v", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"event": event,
		"html":  renderMarkdown(event.Body),
	})
}

func (s *Server) listNewsHandler(c *gin.Context) {
	var posts []db.NewsPost
	err := s.db.Where("published_at IS NOT NULL AND published_at <= ?", time.Now()).
		Order("published_at DESC").
		Find(&posts).Error
	if err != nil {
		log.Errorf("Failed to list news: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list news"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (s *Server) getNewsHandler(c *gin.Context) {
	var post db.NewsPost
	result := s.db.First(&post, "slug = ? AND published_at IS NOT NULL AND published_at <= ?", c.Param("slug"), time.Now())
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
			return
		}
		log.Errorf("Failed to load post: %v", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load post"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"post": post,
		"html": renderMarkdown(post.Body),
	})
}

// newsFeedHandler serves the published posts as RSS or Atom depending on
// the requested extension. Feeds are capped at 20 items.
func (s *Server) newsFeedHandler(c *gin.Context) {
	var posts []db.NewsPost
	err := s.db.Where("published_at IS NOT NULL AND published_at <= ?", time.Now()).
		Order("published_at DESC").
		Limit(20).
		Find(&posts).Error
	if err != nil {
		log.Errorf("Failed to build feed: %v", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	baseURL := strings.TrimSuffix(s.cfg.Site.BaseURL, "/")
	if baseURL == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		baseURL = scheme + "://" + c.Request.Host
	}

	feed := &feeds.Feed{
		Title:       s.cfg.Site.Title,
		Link:        &feeds.Link{Href: baseURL},
		Description: s.cfg.Site.Description,
		Created:     time.Now(),
	}
	if len(posts) > 0 && posts[0].PublishedAt != nil {
		feed.Created = *posts[0].PublishedAt
	}

	for _, post := range posts {
		item := &feeds.Item{
			Title:       post.Title,
			Link:        &feeds.Link{Href: baseURL + "/news/" + post.Slug},
			Description: renderMarkdown(post.Body),
			Created:     *post.PublishedAt,
			Updated:     post.UpdatedAt,
		}
		feed.Add(item)
	}

	if strings.HasSuffix(c.Request.URL.Path, ".atom") {
		atom, err := feed.ToAtom()
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Data(http.StatusOK, "application/atom+xml; charset=utf-8", []byte(atom))
		return
	}

	rss, err := feed.ToRss()
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}

func (s *Server) listPhotosHandler(c *gin.Context) {
	var photos []db.Photo
	if err := s.db.Order("created_at DESC").Find(&photos).Error; err != nil {
		log.Errorf("Failed to list photos: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list photos"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"photos": photos})
}

func (s *Server) listProductsHandler(c *gin.Context) {
	var products []db.Product
	if err := s.db.Order("created_at DESC").Find(&products).Error; err != nil {
		log.Errorf("Failed to list products: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// paceHandler computes pace, speed and race projections for one effort,
// given distance_m and a time like "25:30" or "1:45:00".
func (s *Server) paceHandler(c *gin.Context) {
	var req struct {
		DistanceMeters float64 `form:"distance_m"`
		Time           string  `form:"time"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	elapsed, err := pace.ParseDuration(req.Time)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := pace.Calculate(req.DistanceMeters, elapsed)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
