package handler

import (
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"palpiteiros/internal/apperr"
)

type listResponse struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data"`
	Count     int    `json:"count"`
	Timestamp string `json:"timestamp"`
}

type messageResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Data        any    `json:"data,omitempty"`
	Reactivated *bool  `json:"reactivated,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func List(c *gin.Context, data any, count int, ts string) {
	c.JSON(http.StatusOK, listResponse{Success: true, Data: data, Count: count, Timestamp: ts})
}

func Message(c *gin.Context, message string, data any, reactivated *bool) {
	c.JSON(http.StatusOK, messageResponse{Success: true, Message: message, Data: data, Reactivated: reactivated})
}

// Error writes err with the status its type maps to. Server-side failures keep
// the cause in details and are logged.
func Error(c *gin.Context, logger *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	var rl *apperr.RateLimitError
	if errors.As(err, &rl) {
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
	}
	if status < http.StatusInternalServerError {
		c.JSON(status, errorResponse{Error: err.Error()})
		return
	}
	if logger != nil {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, errorResponse{Error: "internal error", Details: err.Error()})
}

func unavailable(c *gin.Context, logger *zap.Logger, key string) {
	Error(c, logger, &apperr.ConfigurationError{Key: key, Message: "service unavailable"})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: message})
}

// bindParams fills dst from the query string and, for requests with a body, from JSON.
// Body fields override query fields.
func bindParams(c *gin.Context, dst any) error {
	if err := c.ShouldBindQuery(dst); err != nil {
		return apperr.Validation("", "invalid query: %v", err)
	}
	if c.Request.Method == http.MethodGet || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation("", "invalid JSON body: %v", err)
	}
	return nil
}
