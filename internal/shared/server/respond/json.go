package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the success body used by the document API.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
}

// JSON writes a JSON response with the given status.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// OK writes a 200 OK JSON response.
func OK(c *gin.Context, payload interface{}) {
	JSON(c, http.StatusOK, payload)
}

// Success writes {success:true, data, message}.
func Success(c *gin.Context, status int, data any, message string) {
	JSON(c, status, Envelope{Success: true, Data: data, Message: message})
}

// List writes {success:true, count, data}.
func List(c *gin.Context, data any, count int) {
	JSON(c, http.StatusOK, Envelope{Success: true, Data: data, Count: &count})
}
