package handler

import (
	"context"
	"net/http"

	"github.com/hongjs/code-tanuki/internal/service"
	"github.com/labstack/echo/v4"
)

type ReviewServicer interface {
	Review(context.Context, service.ReviewRequest) (*service.ReviewResult, error)
	Submit(context.Context, service.SubmitRequest) (*service.ReviewResult, error)
}

func SetupReviewRoutes(g *echo.Group, reviewService ReviewServicer) {
	h := NewReviewHandler(reviewService)
	g.POST("/review", h.PostReview)
	g.POST("/review/submit", h.PostSubmit)
}

type ReviewHandler struct {
	reviewService ReviewServicer
}

func NewReviewHandler(reviewService ReviewServicer) *ReviewHandler {
	return &ReviewHandler{reviewService}
}

type reviewResponse struct {
	Success bool `json:"success"`
	*service.ReviewResult
}

// PostReview runs a review. With previewOnly the comments come back for
// approval instead of being published.
func (h *ReviewHandler) PostReview(c echo.Context) error {
	req := service.ReviewRequest{}
	if err := c.Bind(&req); err != nil {
		return newError(err, http.StatusBadRequest, "invalid review request")
	}

	res, err := h.reviewService.Review(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reviewResponse{Success: true, ReviewResult: res})
}

// PostSubmit publishes comments approved from a preview.
func (h *ReviewHandler) PostSubmit(c echo.Context) error {
	req := service.SubmitRequest{}
	if err := c.Bind(&req); err != nil {
		return newError(err, http.StatusBadRequest, "invalid submit request")
	}

	res, err := h.reviewService.Submit(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reviewResponse{Success: true, ReviewResult: res})
}
