package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"palpiteiros/internal/service"
)

type SyncHandler struct {
	Service    *service.MarketSyncService
	CronSecret string
	Logger     *zap.Logger
}

func (h *SyncHandler) Register(r gin.IRouter) {
	r.POST("/sync-markets", RequireSecret(h.CronSecret), h.syncMarkets)
}

// @Summary Sync markets and record price points
// @Description Without condition_ids every active market is paged in; with them only those markets are refreshed.
// @Tags sync
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param condition_ids query string false "comma separated condition ids"
// @Param body body service.SyncOptions false "condition ids"
// @Success 200 {object} service.SyncResult
// @Failure 401 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /functions/v1/sync-markets [post]
func (h *SyncHandler) syncMarkets(c *gin.Context) {
	if h.Service == nil {
		unavailable(c, h.Logger, "market_sync")
		return
	}
	var opts service.SyncOptions
	if err := bindParams(c, &opts); err != nil {
		Error(c, h.Logger, err)
		return
	}
	opts.ConditionIDs = splitIDs(opts.ConditionIDs)
	result, err := h.Service.Sync(c.Request.Context(), opts)
	if err != nil {
		Error(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func splitIDs(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
