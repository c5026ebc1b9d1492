package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// handleMockConfig stands in for the security configuration endpoints. It
// accepts any JSON object and echoes it back with a fresh id; nothing is stored.
func handleMockConfig(c *gin.Context) {
	var request map[string]any
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      uuid.New().String(),
		"status":  "active",
		"result":  "success",
		"request": request,
	})
}
