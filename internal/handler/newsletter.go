package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"palpiteiros/internal/service"
)

type NewsletterHandler struct {
	Dispatcher    *service.NewsletterDispatcher
	Subscriptions *service.SubscriptionService
	CronSecret    string
	Logger        *zap.Logger
}

func (h *NewsletterHandler) Register(r gin.IRouter) {
	r.POST("/send-breaking-daily", RequireSecret(h.CronSecret), h.send)
	r.POST("/subscribe-newsletter", h.subscribe)
	r.GET("/unsubscribe-newsletter", h.unsubscribe)
	r.POST("/unsubscribe-newsletter", h.unsubscribe)
}

type subscribeRequest struct {
	Email     string `json:"email" form:"email"`
	Frequency string `json:"frequency" form:"frequency"`
}

type unsubscribeRequest struct {
	Token string `json:"token" form:"token"`
}

type subscriptionView struct {
	Email     string `json:"email"`
	Frequency string `json:"frequency"`
	Active    bool   `json:"active"`
}

// @Summary Send the breaking-markets digest
// @Tags newsletter
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.DispatchOptions false "frequency (daily|weekly) and market limit"
// @Success 200 {object} service.DispatchResult
// @Failure 400 {object} errorResponse
// @Failure 401 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /functions/v1/send-breaking-daily [post]
func (h *NewsletterHandler) send(c *gin.Context) {
	if h.Dispatcher == nil {
		unavailable(c, h.Logger, "newsletter")
		return
	}
	var opts service.DispatchOptions
	if err := bindParams(c, &opts); err != nil {
		Error(c, h.Logger, err)
		return
	}
	result, err := h.Dispatcher.Dispatch(c.Request.Context(), opts)
	if err != nil {
		Error(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Subscribe to the newsletter
// @Tags newsletter
// @Accept json
// @Produce json
// @Param body body subscribeRequest true "email and optional frequency"
// @Success 200 {object} messageResponse
// @Failure 400 {object} errorResponse
// @Failure 429 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /functions/v1/subscribe-newsletter [post]
func (h *NewsletterHandler) subscribe(c *gin.Context) {
	if h.Subscriptions == nil {
		unavailable(c, h.Logger, "subscriptions")
		return
	}
	var req subscribeRequest
	if err := bindParams(c, &req); err != nil {
		Error(c, h.Logger, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		badRequest(c, "email is required")
		return
	}
	res, err := h.Subscriptions.Subscribe(c.Request.Context(), req.Email, req.Frequency)
	if err != nil {
		Error(c, h.Logger, err)
		return
	}
	var data any
	if res.Subscription != nil {
		data = subscriptionView{
			Email:     res.Subscription.Email,
			Frequency: res.Subscription.Frequency,
			Active:    res.Subscription.Active,
		}
	}
	reactivated := res.Reactivated
	Message(c, res.Message, data, &reactivated)
}

// @Summary Unsubscribe from the newsletter
// @Tags newsletter
// @Produce json
// @Param token query string true "unsubscribe token from the email link"
// @Success 200 {object} messageResponse
// @Failure 400 {object} errorResponse
// @Router /functions/v1/unsubscribe-newsletter [get]
// @Router /functions/v1/unsubscribe-newsletter [post]
func (h *NewsletterHandler) unsubscribe(c *gin.Context) {
	if h.Subscriptions == nil {
		unavailable(c, h.Logger, "subscriptions")
		return
	}
	var req unsubscribeRequest
	if err := bindParams(c, &req); err != nil {
		Error(c, h.Logger, err)
		return
	}
	if err := h.Subscriptions.Unsubscribe(c.Request.Context(), req.Token); err != nil {
		Error(c, h.Logger, err)
		return
	}
	Message(c, service.MessageUnsubscribed, nil, nil)
}
