package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/customeros/mailresponder/interfaces"
)

// HealthCheck provides a simple health check endpoint
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Status returns the state of the inbound mailbox connection
func Status(mailbox interfaces.MailboxConnection) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, mailbox.Status())
	}
}

type Poller interface {
	Run(ctx context.Context) (bool, error)
}

// Poll runs one mailbox cycle immediately
func Poll(poller Poller) gin.HandlerFunc {
	return func(c *gin.Context) {
		replied, err := poller.Run(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"replied": false,
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"replied": replied,
		})
	}
}
