package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/customeros/mailresponder/internal/utils"
)

// CustomContextMiddleware tags the request context with the app source and mailbox
func CustomContextMiddleware(appSource, mailbox string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := utils.WithCustomContext(c.Request.Context(), &utils.CustomContext{
			AppSource: appSource,
			Mailbox:   mailbox,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
