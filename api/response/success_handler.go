package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func ok(c *gin.Context, status int, data interface{}, message string) Response {
	return Response{
		Success:   true,
		Data:      data,
		Message:   message,
		Code:      status,
		RequestID: getRequestID(c),
	}
}

func HandleSuccess(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, ok(c, http.StatusOK, data, message))
}

func HandleCreated(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusCreated, ok(c, http.StatusCreated, data, message))
}

// HandlePaginated data 为当前页的列表
func HandlePaginated(c *gin.Context, data interface{}, pagination Pagination, message string) {
	c.JSON(http.StatusOK, PaginatedResponse{
		Response:   ok(c, http.StatusOK, data, message),
		Pagination: pagination,
	})
}
