package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/authz"
	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/db"
)

func (s *Server) createEventHandler(c *gin.Context) {
	var req struct {
		Title     string    `json:"title" binding:"required"`
		Body      string    `json:"body"`
		Location  string    `json:"location"`
		StartsAt  time.Time `json:"starts_at" binding:"required"`
		Distances string    `json:"distances"`
		Published bool      `json:"published"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event := db.Event{
		Title:     req.Title,
		Slug:      db.Slugify(req.Title),
		Body:      req.Body,
		Location:  req.Location,
		StartsAt:  req.StartsAt,
		Distances: req.Distances,
		Published: req.Published,
	}

	if err := s.db.Create(&event).Error; err != nil {
		log.Errorf("Failed to create event: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create event"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"event": event})
}

func (s *Server) updateEventHandler(c *gin.Context) {
	var event db.Event
	if err := s.db.First(&event, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}

	var req struct {
		Title     string    `json:"title" binding:"required"`
		Body      string    `json:"body"`
		Location  string    `json:"location"`
		StartsAt  time.Time `json:"starts_at" binding:"required"`
		Distances string    `json:"distances"`
		Published bool      `json:"published"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// slug stays stable so published URLs keep working
	event.Title = req.Title
	event.Body = req.Body
	event.Location = req.Location
	event.StartsAt = req.StartsAt
	event.Distances = req.Distances
	event.Published = req.Published

	if err := s.db.Save(&event).Error; err != nil {
		log.Errorf("Failed to update event %d: %v", event.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": event})
}

func (s *Server) deleteEventHandler(c *gin.Context) {
	var event db.Event
	if err := s.db.First(&event, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}

	if err := s.db.Delete(&event).Error; err != nil {
		log.Errorf("Failed to delete event %d: %v", event.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) createNewsHandler(c *gin.Context) {
	var req struct {
		Title   string `json:"title" binding:"required"`
		Body    string `json:"body"`
		Publish bool   `json:"publish"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post := db.NewsPost{
		Title: req.Title,
		Slug:  db.Slugify(req.Title),
		Body:  req.Body,
	}
	if user, ok := authz.GetCurrentUser(c); ok {
		post.AuthorID = user.ID
	}
	if req.Publish {
		now := time.Now()
		post.PublishedAt = &now
	}

	if err := s.db.Create(&post).Error; err != nil {
		log.Errorf("Failed to create post: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create post"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"post": post})
}

func (s *Server) updateNewsHandler(c *gin.Context) {
	var post db.NewsPost
	if err := s.db.First(&post, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}

	var req struct {
		Title   string `json:"title" binding:"required"`
		Body    string `json:"body"`
		Publish bool   `json:"publish"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post.Title = req.Title
	post.Body = req.Body
	if req.Publish && post.PublishedAt == nil {
		now := time.Now()
		post.PublishedAt = &now
	}
	if !req.Publish {
		post.PublishedAt = nil
	}

	if err := s.db.Save(&post).Error; err != nil {
		log.Errorf("Failed to update post %d: %v", post.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update post"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (s *Server) deleteNewsHandler(c *gin.Context) {
	var post db.NewsPost
	if err := s.db.First(&post, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}

	if err := s.db.Delete(&post).Error; err != nil {
		log.Errorf("Failed to delete post %d: %v", post.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete post"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) createProductHandler(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		PriceCents  int    `json:"price_cents"`
		Sizes       string `json:"sizes"`
		InStock     bool   `json:"in_stock"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product := db.Product{
		Name:        req.Name,
		Slug:        db.Slugify(req.Name),
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Sizes:       req.Sizes,
		InStock:     req.InStock,
	}

	if err := s.db.Create(&product).Error; err != nil {
		log.Errorf("Failed to create product: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create product"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"product": product})
}

func (s *Server) updateProductHandler(c *gin.Context) {
	var product db.Product
	if err := s.db.First(&product, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		PriceCents  int    `json:"price_cents"`
		Sizes       string `json:"sizes"`
		InStock     bool   `json:"in_stock"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product.Name = req.Name
	product.Description = req.Description
	product.PriceCents = req.PriceCents
	product.Sizes = req.Sizes
	product.InStock = req.InStock

	if err := s.db.Save(&product).Error; err != nil {
		log.Errorf("Failed to update product %d: %v", product.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (s *Server) deleteProductHandler(c *gin.Context) {
	var product db.Product
	if err := s.db.First(&product, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	if err := s.db.Delete(&product).Error; err != nil {
		log.Errorf("Failed to delete product %d: %v", product.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

// uploadPhotoHandler stores the uploaded image under the uploads dir and
// writes a resized thumbnail next to it.
func (s *Server) uploadPhotoHandler(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file uploaded"})
		return
	}

	if !isImageFile(fileHeader.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}

	if err := os.MkdirAll(s.cfg.Uploads.Dir, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to create upload directory: %v", err)})
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	fileName := uuid.New().String() + ext
	targetPath := filepath.Join(s.cfg.Uploads.Dir, fileName)

	if err := c.SaveUploadedFile(fileHeader, targetPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to save file: %v", err)})
		return
	}

	thumbName := ""
	img, err := imaging.Open(targetPath, imaging.AutoOrientation(true))
	if err != nil {
		log.Warnf("Failed to open %s for thumbnailing: %v", targetPath, err)
	} else {
		thumb := imaging.Resize(img, s.cfg.Uploads.ThumbWidth, 0, imaging.Lanczos)
		thumbName = strings.TrimSuffix(fileName, ext) + "_thumb" + ext
		if err := imaging.Save(thumb, filepath.Join(s.cfg.Uploads.Dir, thumbName)); err != nil {
			log.Warnf("Failed to save thumbnail for %s: %v", targetPath, err)
			thumbName = ""
		}
	}

	photo := db.Photo{
		Title:     c.PostForm("title"),
		FileName:  fileName,
		ThumbName: thumbName,
	}
	if user, ok := authz.GetCurrentUser(c); ok {
		photo.UploadedBy = user.ID
	}

	if err := s.db.Create(&photo).Error; err != nil {
		log.Errorf("Failed to record photo: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record photo"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"photo": photo})
}

func (s *Server) deletePhotoHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return
	}

	var photo db.Photo
	if err := s.db.First(&photo, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	if err := s.db.Delete(&photo).Error; err != nil {
		log.Errorf("Failed to delete photo %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete photo"})
		return
	}

	for _, name := range []string{photo.FileName, photo.ThumbName} {
		if name == "" {
			continue
		}
		if err := os.Remove(filepath.Join(s.cfg.Uploads.Dir, name)); err != nil && !os.IsNotExist(err) {
			log.Warnf("Failed to remove photo file %s: %v", name, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
