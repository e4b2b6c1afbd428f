package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"skinscan/auth"
	"skinscan/models"
	"skinscan/pkg/ocr"
	"skinscan/store"
	"skinscan/upload"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type approveRequest struct {
	DoctorID userID `json:"doctorId"`
	Status   string `json:"status"`
}

// userID accepts an id sent either as a JSON number or as a numeric string.
type userID uint

func (id *userID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
		if s == "" {
			return nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s", b)
	}
	*id = userID(n)
	return nil
}

// validateAccount checks the fields shared by both registration flows.
func validateAccount(name, email, password string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || password == "" {
		return badRequest("name, email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return badRequest("invalid email address")
	}
	if len(password) < 6 {
		return badRequest("password too short (min 6)")
	}
	return nil
}

func (s *server) registerHandler(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validateAccount(req.Name, req.Email, req.Password); err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	exists, err := s.users.EmailExists(ctx, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	if exists {
		respondError(c, errConflict)
		return
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	switch role {
	case "", models.RolePatient:
		role = models.RolePatient
	case models.RoleDoctor:
		respondError(c, badRequest("Doctor registration requires degree upload. Please use the doctor registration endpoint."))
		return
	default:
		respondError(c, badRequest("role must be patient"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	user := &models.User{Name: strings.TrimSpace(req.Name), Email: req.Email, Password: hash, Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		respondError(c, err)
		return
	}
	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

// doctorRegisterHandler creates a doctor account in pending state from a
// multipart form carrying the degree document. No token is issued.
func (s *server) doctorRegisterHandler(c *gin.Context) {
	policy := upload.DegreePolicy()
	limitBody(c, policy.MaxBytes)
	fh, err := formFile(c, policy, "Degree document is required for doctor registration")
	if err != nil {
		respondError(c, err)
		return
	}
	name, email, password := c.PostForm("name"), c.PostForm("email"), c.PostForm("password")
	if err := validateAccount(name, email, password); err != nil {
		respondError(c, err)
		return
	}
	if _, err := policy.Validate(fh); err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		respondError(c, err)
		return
	}
	if exists {
		respondError(c, errConflict)
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		respondError(c, err)
		return
	}
	stored, err := s.uploads.Save(fh, policy)
	if err != nil {
		respondError(c, err)
		return
	}
	user := &models.User{
		Name:       strings.TrimSpace(name),
		Email:      email,
		Password:   hash,
		Role:       models.RoleDoctor,
		DegreePath: &stored.PublicPath,
		DegreeText: s.readDegree(stored.DiskPath),
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.uploads.Remove(stored)
		respondError(c, err)
		return
	}
	slog.Info("doctor registration pending", "user_id", user.ID, "degree", stored.PublicPath)
	c.JSON(http.StatusCreated, gin.H{
		"message": "Doctor registration submitted successfully. Your account is pending approval by an administrator.",
	})
}

// readDegree runs OCR on image degrees. Failures only cost the preview text.
func (s *server) readDegree(path string) *string {
	if s.degrees == nil {
		return nil
	}
	text, err := s.degrees.ExtractText(path)
	if err != nil {
		if !errors.Is(err, ocr.ErrUnsupported) {
			slog.Warn("degree OCR failed", "path", path, "error", err)
		}
		return nil
	}
	return &text
}

func (s *server) loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := s.users.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, badRequest("Invalid credentials"))
			return
		}
		respondError(c, err)
		return
	}
	if !auth.CheckPassword(user.Password, req.Password) {
		respondError(c, badRequest("Invalid credentials"))
		return
	}
	if !user.CanLogin() {
		msg := "Your doctor account is pending approval by an administrator. Please check back later."
		if user.ApprovalStatus != nil && *user.ApprovalStatus == models.ApprovalRejected {
			msg = "Your doctor registration was rejected by an administrator."
		}
		respondError(c, forbidden(msg))
		return
	}
	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

func (s *server) listUsersHandler(c *gin.Context) {
	users, err := s.users.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *server) listPendingDoctorsHandler(c *gin.Context) {
	users, err := s.users.ListPendingDoctors(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// approveDoctorHandler moves a doctor to approved or rejected.
func (s *server) approveDoctorHandler(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DoctorID == 0 || req.Status == "" {
		respondError(c, badRequest("Doctor ID and status are required"))
		return
	}
	if req.Status != models.ApprovalApproved && req.Status != models.ApprovalRejected {
		respondError(c, badRequest("Status must be either approved or rejected"))
		return
	}
	ctx := c.Request.Context()
	target, err := s.users.FindByID(ctx, uint(req.DoctorID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, notFound("Doctor not found"))
			return
		}
		respondError(c, err)
		return
	}
	if target.Role != models.RoleDoctor {
		respondError(c, badRequest("User is not a doctor"))
		return
	}
	if err := s.users.UpdateApprovalStatus(ctx, target.ID, req.Status); err != nil {
		respondError(c, err)
		return
	}
	if id, err := identity(c); err == nil {
		slog.Info("doctor approval updated", "doctor_id", target.ID, "status", req.Status, "admin_id", id.UserID)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Doctor registration " + req.Status})
}
