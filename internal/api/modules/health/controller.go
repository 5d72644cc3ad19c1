package health

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/ethanbaker/api/pkg/api_types"
	"github.com/gin-gonic/gin"

	"github.com/ethanbaker/voicechat/pkg/sdk"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Return status of the API and its store
func getStatus(store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			log.Printf("[HEALTH]: Store unreachable: %v", err)
			c.JSON(sdk.NewErrorResponse(http.StatusServiceUnavailable, "Store unreachable", nil).AsGinResponse())
			return
		}

		res := api_types.NewSuccessResponse("OK", nil)
		c.JSON(res.AsGinResponse())
	}
}
