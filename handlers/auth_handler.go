package handlers

import (
	"errors"
	"net/http"

	"polling-system-backend/auth"
	"polling-system-backend/errs"
	"polling-system-backend/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthHandler serves registration, login and the current-user endpoint.
type AuthHandler struct {
	db     *gorm.DB
	tokens *auth.Service
}

func NewAuthHandler(db *gorm.DB, tokens *auth.Service) *AuthHandler {
	return &AuthHandler{db: db, tokens: tokens}
}

type registerInput struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=user admin"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var input registerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, errs.New(errs.InvalidInput, err.Error()))
		return
	}

	var existing models.User
	err := h.db.Where("email = ? OR username = ?", input.Email, input.Username).First(&existing).Error
	if err == nil {
		abortWithError(c, errs.New(errs.Conflict, "user already exists with this email or username"))
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		abortWithError(c, err)
		return
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	role := input.Role
	if role == "" {
		role = models.RoleUser
	}
	user := models.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := h.db.Create(&user).Error; err != nil {
		abortWithError(c, err)
		return
	}

	h.sendToken(c, http.StatusCreated, &user)
}

type loginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, errs.New(errs.InvalidInput, err.Error()))
		return
	}

	var user models.User
	err := h.db.Where("email = ?", input.Email).First(&user).Error
	if err != nil || !auth.CheckPassword(user.PasswordHash, input.Password) {
		abortWithError(c, errs.New(errs.Unauthorized, "incorrect email or password"))
		return
	}
	if !user.IsActive {
		abortWithError(c, errs.New(errs.Unauthorized, "account has been deactivated"))
		return
	}

	h.sendToken(c, http.StatusOK, &user)
}

func (h *AuthHandler) Me(c *gin.Context) {
	ident := auth.CurrentIdentity(c)
	var user models.User
	if err := h.db.First(&user, ident.UserID).Error; err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   gin.H{"user": user},
	})
}

func (h *AuthHandler) sendToken(c *gin.Context, status int, user *models.User) {
	token, err := h.tokens.IssueToken(user)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(status, gin.H{
		"status": "success",
		"token":  token,
		"data":   gin.H{"user": user},
	})
}
