package handler

import (
	"errors"
	"net/http"
	"strconv"

	"wavely/backend/internal/models"
	"wavely/backend/internal/service"
	"wavely/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserHandler covers registration, login and profile reads. Registration and
// login exist only as the user-creation entry point; the interesting surface
// lives in the follow and notification handlers.
type UserHandler struct {
	db      *gorm.DB
	follows service.FollowService
}

func NewUserHandler(db *gorm.DB, follows service.FollowService) *UserHandler {
	return &UserHandler{db: db, follows: follows}
}

// region --- DTOs ---

// RegisterInput defines the structure for user registration.
type RegisterInput struct {
	Username string `json:"username" binding:"required,min=3,max=30" example:"testuser"`
	Email    string `json:"email" binding:"required,email" example:"test@example.com"`
	Password string `json:"password" binding:"required,min=8" example:"password123"`
}

// LoginInput defines the structure for user login.
type LoginInput struct {
	Login    string `json:"login" binding:"required" example:"testuser"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// PublicUserResponse defines the structure for a user's public profile.
type PublicUserResponse struct {
	ID             uint   `json:"id" example:"1"`
	Username       string `json:"username" example:"testuser"`
	ProfileImg     string `json:"profile_img"`
	Bio            string `json:"bio"`
	Location       string `json:"location"`
	IsVerified     bool   `json:"is_verified"`
	FollowersCount int64  `json:"followers_count"`
	FollowingCount int64  `json:"following_count"`
	IsFollowing    bool   `json:"is_following"`
	IsFollowedBy   bool   `json:"is_followed_by"`
}

// PrivateUserResponse defines the structure for the authenticated user's own profile.
type PrivateUserResponse struct {
	ID             uint   `json:"id" example:"1"`
	Username       string `json:"username" example:"testuser"`
	Email          string `json:"email" example:"test@example.com"`
	ProfileImg     string `json:"profile_img"`
	Bio            string `json:"bio"`
	Location       string `json:"location"`
	IsVerified     bool   `json:"is_verified"`
	FollowersCount int64  `json:"followers_count"`
	FollowingCount int64  `json:"following_count"`
}

// endregion

// region --- Auth Handlers ---

// Register godoc
// @Summary      Register a new user
// @Description  Creates a new user and returns an authentication token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body RegisterInput true "Registration Info"
// @Success      201  {object}  map[string]string "{"token": "..."}"
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /auth/register [post]
func (h *UserHandler) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var existingUser models.User
	if err := h.db.Where("username = ? OR email = ?", input.Username, input.Email).First(&existingUser).Error; err == nil {
		respondError(c, http.StatusConflict, "Username or email already exists")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user := models.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
	}
	if err := h.db.Create(&user).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	token, err := jwt.GenerateToken(user.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "token": token})
}

// Login godoc
// @Summary      Log in a user
// @Description  Authenticates a user with username/email and password, and returns a new token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body LoginInput true "Login Info"
// @Success      200  {object}  map[string]string "{"token": "..."}"
// @Failure      400  {object}  ErrorResponse "Invalid input"
// @Failure      401  {object}  ErrorResponse "Invalid credentials"
// @Failure      404  {object}  ErrorResponse "User not found"
// @Router       /auth/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var user models.User
	if err := h.db.Where("username = ? OR email = ?", input.Login, input.Login).First(&user).Error; err != nil {
		respondError(c, http.StatusNotFound, "User not found")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		respondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := jwt.GenerateToken(user.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
}

// endregion

// region --- User Handlers ---

// GetMe godoc
// @Summary      Get own profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  PrivateUserResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /users/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	var user models.User
	if err := h.db.First(&user, viewerID.(uint)).Error; err != nil {
		respondError(c, http.StatusNotFound, "User not found")
		return
	}

	c.JSON(http.StatusOK, buildPrivateUserResponse(user))
}

// GetUserByID godoc
// @Summary      Get a user's public profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  int  true  "User ID"
// @Success      200  {object}  PublicUserResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /users/{id} [get]
func (h *UserHandler) GetUserByID(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	targetID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var user models.User
	if err := h.db.First(&user, uint(targetID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	c.JSON(http.StatusOK, h.buildPublicUserResponse(c, user, viewerID.(uint)))
}

// SearchUsers godoc
// @Summary      Search for users
// @Description  Searches for users by username with pagination.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        q     query  string  false  "Search query for username"
// @Param        page  query  int     false  "Page number"     default(1)
// @Param        limit query  int     false  "Items per page"  default(10)
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  ErrorResponse
// @Router       /users [get]
func (h *UserHandler) SearchUsers(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	searchQuery := c.Query("q")
	page, limit := pageParams(c, 10)

	query := h.db.Model(&models.User{})
	if searchQuery != "" {
		query = query.Where("username LIKE ?", "%"+searchQuery+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to count users")
		return
	}

	var users []models.User
	if err := query.Limit(limit).Offset((page - 1) * limit).Find(&users).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to retrieve users")
		return
	}

	responses := make([]PublicUserResponse, 0, len(users))
	for _, user := range users {
		if user.ID == viewerID.(uint) {
			continue
		}
		responses = append(responses, h.buildPublicUserResponse(c, user, viewerID.(uint)))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       responses,
		"pagination": NewPagination(page, limit, total),
	})
}

// endregion

// region --- Helpers ---

func (h *UserHandler) buildPublicUserResponse(c *gin.Context, user models.User, viewerID uint) PublicUserResponse {
	status, err := h.follows.Status(c.Request.Context(), viewerID, user.ID)
	if err != nil {
		status = service.FollowStatus{}
	}

	return PublicUserResponse{
		ID:             user.ID,
		Username:       user.Username,
		ProfileImg:     user.ProfileImg,
		Bio:            user.Bio,
		Location:       user.Location,
		IsVerified:     user.IsVerified,
		FollowersCount: user.FollowersCount,
		FollowingCount: user.FollowingCount,
		IsFollowing:    status.IsFollowing,
		IsFollowedBy:   status.IsFollowedBy,
	}
}

func buildPrivateUserResponse(user models.User) PrivateUserResponse {
	return PrivateUserResponse{
		ID:             user.ID,
		Username:       user.Username,
		Email:          user.Email,
		ProfileImg:     user.ProfileImg,
		Bio:            user.Bio,
		Location:       user.Location,
		IsVerified:     user.IsVerified,
		FollowersCount: user.FollowersCount,
		FollowingCount: user.FollowingCount,
	}
}

// endregion
