package voice

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the voice routes behind the auth middleware
func RegisterRoutes(g *gin.RouterGroup, ctrl *Controller, authn gin.HandlerFunc) {
	group := g.Group("/voice")
	group.Handlers = append(group.Handlers, authn)

	group.POST("/turns", ctrl.limitBody, ctrl.PostTurn)      // Run one voice turn
	group.POST("/sessions", ctrl.CreateSession)              // Explicitly start a session
	group.GET("/sessions/:uuid/messages", ctrl.ListMessages) // Recent messages of an owned session
}

// limitBody caps the request body at the audio limit plus room for the other form fields
func (ctrl *Controller) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ctrl.maxBodyBytes)
	c.Next()
}
