package voice

import (
	"log"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ethanbaker/voicechat/pkg/apperr"
	"github.com/ethanbaker/voicechat/pkg/sdk"
)

// respondError writes the {error, message} body for a classified failure.
// The underlying error text is logged and only exposed when configured.
func (ctrl *Controller) respondError(c *gin.Context, err error) {
	e := apperr.Normalize(err)
	status := e.HTTPStatus()

	if status >= 500 || e.Err != nil {
		log.Printf("[VOICE]: %s %s failed with %d: %v", c.Request.Method, c.FullPath(), status, err)
	}

	if e.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(e.RetryAfter.Seconds()))))
	}

	body := sdk.ErrorBody{Error: e.WireCode(), Message: e.Message}
	if ctrl.exposeDetails {
		body.Detail = err.Error()
	}

	c.AbortWithStatusJSON(status, body)
}
