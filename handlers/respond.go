package handlers

import (
	"polling-system-backend/errs"

	"github.com/gin-gonic/gin"
)

// abortWithError renders a classified error with its stable code; the live
// channel uses the same codes in its error events.
func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errs.HTTPStatus(err), gin.H{
		"status":  "error",
		"code":    errs.Code(err),
		"message": errs.Message(err),
	})
}

// pagination is the list envelope shared by every paginated endpoint.
type pagination struct {
	Current int   `json:"current"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
}

func paginate(page, limit int, total int64) pagination {
	pages := int((total + int64(limit) - 1) / int64(limit))
	return pagination{Current: page, Pages: pages, Total: total}
}
