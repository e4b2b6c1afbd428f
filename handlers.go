package main

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"skinscan/auth"
	"skinscan/upload"

	"github.com/gin-gonic/gin"
)

func setupRoutes(r *gin.Engine, s *server) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	// read-only, no directory listing
	r.Static("/"+upload.PublicPrefix, s.cfg.UploadBase)

	api := r.Group("/api")

	users := api.Group("/users")
	users.POST("/register", s.registerHandler)
	users.POST("/doctor/register", s.doctorRegisterHandler)
	users.POST("/login", s.loginHandler)

	admin := users.Group("")
	admin.Use(auth.RequireAuth(s.tokens), auth.RequireAdmin(s.users))
	admin.GET("/all", s.listUsersHandler)
	admin.GET("/doctors/pending", s.listPendingDoctorsHandler)
	admin.POST("/doctor/approve", s.approveDoctorHandler)

	images := api.Group("/images")
	requireAuth := auth.RequireAuth(s.tokens)
	images.POST("/upload", requireAuth, s.uploadImageHandler)
	images.GET("/user/me", requireAuth, s.listMyImagesHandler)
	images.GET("/:id", s.getImageHandler)
}

// identity returns the caller attached by auth.RequireAuth.
func identity(c *gin.Context) (auth.Identity, error) {
	id, ok := auth.FromContext(c.Request.Context())
	if !ok {
		return auth.Identity{}, unauthorized("unauthenticated")
	}
	return id, nil
}

// limitBody caps the request body at max plus room for the other form fields.
func limitBody(c *gin.Context, max int64) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max+1<<20)
}

// formFile reads a multipart file field. A body over the limit is reported
// as a rejection like any other size violation.
func formFile(c *gin.Context, p upload.Policy, missing string) (*multipart.FileHeader, error) {
	fh, err := c.FormFile(p.Field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, badRequest("file too large (max " + strconv.FormatInt(p.MaxBytes>>20, 10) + "MB)")
		}
		return nil, badRequest(missing)
	}
	return fh, nil
}

// publicURL joins the externally visible base URL with an image path.
func (s *server) publicURL(c *gin.Context, publicPath string) string {
	base := s.cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		} else if p := c.GetHeader("X-Forwarded-Proto"); p != "" {
			scheme = strings.TrimSpace(strings.Split(p, ",")[0])
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + "/" + strings.TrimPrefix(publicPath, "/")
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
