package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"palpiteiros/internal/service"
)

type BreakingHandler struct {
	Service *service.BreakingMarketsService
	// Defaults fill parameters the caller leaves out. Zero means service.DefaultParams.
	Defaults service.Params
	Logger   *zap.Logger
}

func (h *BreakingHandler) Register(r gin.IRouter) {
	r.GET("/get-breaking-markets", h.getBreaking)
	r.POST("/get-breaking-markets", h.getBreaking)
}

// @Summary Rank breaking markets
// @Description Markets with the largest recent price movement, ordered by movement score.
// @Tags breaking
// @Accept json
// @Produce json
// @Param limit query int false "result size (1-100)" default(20)
// @Param min_price_change query number false "minimum absolute price change (0-1)" default(0.05)
// @Param time_range_hours query int false "window in hours (1-168)" default(24)
// @Param market_id query string false "single market id or condition id; bypasses the threshold"
// @Param body body service.Params false "same parameters as JSON"
// @Success 200 {object} listResponse
// @Failure 400 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /functions/v1/get-breaking-markets [get]
// @Router /functions/v1/get-breaking-markets [post]
func (h *BreakingHandler) getBreaking(c *gin.Context) {
	if h.Service == nil {
		unavailable(c, h.Logger, "breaking")
		return
	}
	params := h.Defaults
	if params == (service.Params{}) {
		params = service.DefaultParams()
	}
	if err := bindParams(c, &params); err != nil {
		Error(c, h.Logger, err)
		return
	}
	markets, err := h.Service.Rank(c.Request.Context(), params)
	if err != nil {
		Error(c, h.Logger, err)
		return
	}
	List(c, markets, len(markets), time.Now().UTC().Format(time.RFC3339))
}
