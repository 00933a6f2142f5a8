package handler

import "github.com/gin-gonic/gin"

// ErrorResponse is the stable failure shape every endpoint returns. Internal
// store errors never leak past the generic message.
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"An error message"`
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}
