package handler

import (
	"errors"
	"net/http"
	"strconv"

	"wavely/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// FollowHandler exposes the follow service over REST.
type FollowHandler struct {
	follows service.FollowService
}

func NewFollowHandler(follows service.FollowService) *FollowHandler {
	return &FollowHandler{follows: follows}
}

// Follow godoc
// @Summary      Follow a user
// @Description  Creates a follow relationship from the caller to the target user.
// @Tags         follow
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path  int  true  "Target User ID"
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse "Self-follow or invalid id"
// @Failure      404  {object}  ErrorResponse "Target user not found"
// @Failure      409  {object}  ErrorResponse "Already following"
// @Router       /follow/{userId} [post]
func (h *FollowHandler) Follow(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	targetID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid target user ID")
		return
	}

	follow, err := h.follows.Follow(c.Request.Context(), viewerID.(uint), uint(targetID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfFollow):
			respondError(c, http.StatusBadRequest, "You cannot follow yourself")
		case errors.Is(err, service.ErrUserNotFound):
			respondError(c, http.StatusNotFound, "User not found")
		case errors.Is(err, service.ErrAlreadyFollowing):
			respondError(c, http.StatusConflict, "You are already following this user")
		default:
			respondError(c, http.StatusInternalServerError, "Failed to follow user")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Follow created", "data": follow})
}

// Unfollow godoc
// @Summary      Unfollow a user
// @Description  Removes the follow relationship from the caller to the target user.
// @Tags         follow
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path  int  true  "Target User ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse "Not following"
// @Router       /follow/{userId} [delete]
func (h *FollowHandler) Unfollow(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	targetID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid target user ID")
		return
	}

	if err := h.follows.Unfollow(c.Request.Context(), viewerID.(uint), uint(targetID)); err != nil {
		if errors.Is(err, service.ErrNotFollowing) {
			respondError(c, http.StatusNotFound, "You are not following this user")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to unfollow user")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "You have unfollowed the user"})
}

// GetFollowers godoc
// @Summary      List a user's followers
// @Description  Returns the user's followers newest-first with pagination.
// @Tags         follow
// @Produce      json
// @Param        userId  path   int  true   "User ID"
// @Param        page    query  int  false  "Page number"     default(1)
// @Param        limit   query  int  false  "Items per page"  default(20)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Router       /follow/followers/{userId} [get]
func (h *FollowHandler) GetFollowers(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid user ID")
		return
	}
	page, limit := pageParams(c, 20)

	users, total, err := h.follows.ListFollowers(c.Request.Context(), uint(userID), page, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch followers")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       users,
		"pagination": NewPagination(page, limit, total),
	})
}

// GetFollowing godoc
// @Summary      List who a user follows
// @Description  Returns the users someone follows, newest-first with pagination.
// @Tags         follow
// @Produce      json
// @Param        userId  path   int  true   "User ID"
// @Param        page    query  int  false  "Page number"     default(1)
// @Param        limit   query  int  false  "Items per page"  default(20)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Router       /follow/following/{userId} [get]
func (h *FollowHandler) GetFollowing(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid user ID")
		return
	}
	page, limit := pageParams(c, 20)

	users, total, err := h.follows.ListFollowing(c.Request.Context(), uint(userID), page, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch following")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       users,
		"pagination": NewPagination(page, limit, total),
	})
}

// CheckStatus godoc
// @Summary      Check follow status
// @Description  Reports whether the caller follows the target and vice versa.
// @Tags         follow
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path  int  true  "Target User ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Router       /follow/check/{userId} [get]
func (h *FollowHandler) CheckStatus(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	targetID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid target user ID")
		return
	}

	status, err := h.follows.Status(c.Request.Context(), viewerID.(uint), uint(targetID))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to check follow status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"isFollowing":  status.IsFollowing,
		"isFollowedBy": status.IsFollowedBy,
	})
}

// GetSuggestions godoc
// @Summary      Suggest users to follow
// @Description  Returns users the caller is not yet connected to.
// @Tags         follow
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /follow/suggestions [get]
func (h *FollowHandler) GetSuggestions(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	users, err := h.follows.Suggestions(c.Request.Context(), viewerID.(uint), 10)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch suggestions")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "users": users})
}
