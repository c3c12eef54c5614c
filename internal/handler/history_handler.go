package handler

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/hongjs/code-tanuki/internal/service"
	"github.com/hongjs/code-tanuki/internal/store"
	"github.com/labstack/echo/v4"
)

type HistoryServicer interface {
	ListRuns(context.Context, store.RunFilter) (*store.RunPage, error)
	GetRun(context.Context, string) (*service.RunDetail, error)
	DeleteRun(context.Context, string) error
	ReadArtifact(ctx context.Context, id, name string) ([]byte, error)
}

func SetupHistoryRoutes(g *echo.Group, historyService HistoryServicer) {
	h := NewHistoryHandler(historyService)
	g.GET("/history", h.GetHistory)
	g.GET("/review/:id", h.GetReview)
	g.DELETE("/review/:id", h.DeleteReview)
	g.GET("/review/:id/files/:filename", h.GetReviewFile)
}

type HistoryHandler struct {
	historyService HistoryServicer
}

func NewHistoryHandler(historyService HistoryServicer) *HistoryHandler {
	return &HistoryHandler{historyService}
}

func (h *HistoryHandler) GetHistory(c echo.Context) error {
	hp := new(HistoryParams)
	if err := c.Bind(hp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid history query")
	}
	f, err := hp.Filter()
	if err != nil {
		return err
	}

	page, err := h.historyService.ListRuns(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *HistoryHandler) GetReview(c echo.Context) error {
	rp := new(ReviewIDParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid review id")
	}

	run, err := h.historyService.GetRun(c.Request().Context(), rp.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, run)
}

func (h *HistoryHandler) DeleteReview(c echo.Context) error {
	rp := new(ReviewIDParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid review id")
	}

	if err := h.historyService.DeleteRun(c.Request().Context(), rp.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// GetReviewFile downloads one artifact of a run.
func (h *HistoryHandler) GetReviewFile(c echo.Context) error {
	fp := new(ReviewFileParams)
	if err := c.Bind(fp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid file request")
	}

	data, err := h.historyService.ReadArtifact(c.Request().Context(), fp.ID, fp.Filename)
	if err != nil {
		return err
	}

	c.Response().Header().Set(
		echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", fp.Filename),
	)
	return c.Blob(http.StatusOK, artifactContentType(fp.Filename), data)
}

func artifactContentType(name string) string {
	switch filepath.Ext(name) {
	case ".json":
		return echo.MIMEApplicationJSON
	case ".txt":
		return echo.MIMETextPlainCharsetUTF8
	default:
		return echo.MIMEOctetStream
	}
}
