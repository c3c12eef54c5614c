package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hongjs/code-tanuki/internal/apperr"
	"github.com/hongjs/code-tanuki/internal/review"
	"github.com/hongjs/code-tanuki/internal/service"
	"github.com/hongjs/code-tanuki/internal/store"
	"github.com/hongjs/code-tanuki/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPRURL = "https://github.com/acme/widgets/pull/42"

func newTestEcho(t *testing.T) (*echo.Echo, *echo.Group) {
	t.Helper()
	return NewEcho(ServerConfig{}, zap.NewNop())
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var res errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestReviewHandler_PostReview(t *testing.T) {
	t.Run("success - preview returns comments and steps", func(t *testing.T) {
		// arrange
		steps := store.NewSteps()
		steps[store.StepFetchGitHub] = store.Succeeded(time.Second)
		steps[store.StepPostGitHubComments] = store.Skipped("awaiting approval")
		expectedReq := service.ReviewRequest{
			PRURL:       testPRURL,
			ModelID:     "claude-sonnet-4-5",
			PreviewOnly: true,
		}
		mockService := new(testutil.MockReviewService)
		mockService.On("Review", mock.Anything, expectedReq).Return(&service.ReviewResult{
			ReviewID: "run-1",
			Preview:  true,
			PRTitle:  "fix: null check",
			PRURL:    testPRURL,
			ModelID:  "claude-sonnet-4-5",
			Comments: []review.Comment{
				{Path: "cart.go", Line: 3, Body: "nil check", Severity: review.SeverityWarning},
			},
			CommentsCount: 1,
			Steps:         steps,
		}, nil)
		e, api := newTestEcho(t)
		SetupReviewRoutes(api, mockService)

		// act
		rec := serve(e, http.MethodPost, "/api/review",
			`{"prUrl":"`+testPRURL+`","modelId":"claude-sonnet-4-5","previewOnly":true}`)

		// assert
		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["success"])
		assert.Equal(t, true, body["preview"])
		assert.Equal(t, "run-1", body["reviewId"])
		assert.Len(t, body["comments"], 1)
		assert.Contains(t, body["steps"], "postGitHubComments")
		mockService.AssertExpectations(t)
	})
	t.Run("failure - pipeline error names the failed step", func(t *testing.T) {
		// arrange
		steps := store.NewSteps()
		cause := apperr.Upstream(apperr.ServiceGitHub, http.StatusNotFound, "Failed to fetch PR", nil)
		steps[store.StepFetchGitHub] = store.Failed(time.Second, cause)
		mockService := new(testutil.MockReviewService)
		mockService.On("Review", mock.Anything, mock.Anything).Return(nil, &service.PipelineError{
			ReviewID: "run-1",
			Step:     store.StepFetchGitHub,
			Label:    service.StepLabel(store.StepFetchGitHub),
			Steps:    steps,
			Err:      cause,
		})
		e, api := newTestEcho(t)
		SetupReviewRoutes(api, mockService)

		// act
		rec := serve(e, http.MethodPost, "/api/review",
			`{"prUrl":"`+testPRURL+`","modelId":"claude-sonnet-4-5"}`)

		// assert
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		res := decodeError(t, rec)
		assert.False(t, res.Success)
		assert.Equal(t, store.StepFetchGitHub, res.FailedStep)
		assert.Equal(t, "GitHub (fetching PR)", res.FailedService)
		assert.Equal(t, "GitHub (fetching PR) failed: Failed to fetch PR", res.Error)
		assert.Equal(t, store.StateFailed, res.Steps[store.StepFetchGitHub].State)
		assert.Equal(t, store.StateNotAttempted, res.Steps[store.StepAIReview].State)
	})
	t.Run("failure - duplicate review is a conflict", func(t *testing.T) {
		// arrange
		mockService := new(testutil.MockReviewService)
		mockService.On("Review", mock.Anything, mock.Anything).
			Return(nil, apperr.Duplicate("acme/widgets#42 was reviewed recently"))
		e, api := newTestEcho(t)
		SetupReviewRoutes(api, mockService)

		// act
		rec := serve(e, http.MethodPost, "/api/review",
			`{"prUrl":"`+testPRURL+`","modelId":"claude-sonnet-4-5"}`)

		// assert
		assert.Equal(t, http.StatusConflict, rec.Code)
		res := decodeError(t, rec)
		assert.Equal(t, "acme/widgets#42 was reviewed recently", res.Error)
		assert.Empty(t, res.FailedStep)
	})
	t.Run("failure - malformed body", func(t *testing.T) {
		// arrange
		mockService := new(testutil.MockReviewService)
		e, api := newTestEcho(t)
		SetupReviewRoutes(api, mockService)

		// act
		rec := serve(e, http.MethodPost, "/api/review", `{"prUrl":`)

		// assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid review request", decodeError(t, rec).Error)
		mockService.AssertNotCalled(t, "Review", mock.Anything, mock.Anything)
	})
}

func TestReviewHandler_PostSubmit(t *testing.T) {
	t.Run("success - approved comments are published", func(t *testing.T) {
		// arrange
		comments := []review.Comment{
			{Path: "cart.go", Line: 3, Body: "nil check", Severity: review.SeverityCritical},
		}
		expectedReq := service.SubmitRequest{
			PRURL:    testPRURL,
			ReviewID: "run-1",
			ModelID:  "claude-sonnet-4-5",
			Comments: comments,
		}
		mockService := new(testutil.MockReviewService)
		mockService.On("Submit", mock.Anything, expectedReq).Return(&service.ReviewResult{
			ReviewID:      "run-1",
			PRURL:         testPRURL,
			CommentsCount: 1,
			Steps:         store.NewSteps(),
		}, nil)
		e, api := newTestEcho(t)
		SetupReviewRoutes(api, mockService)

		// act
		rec := serve(e, http.MethodPost, "/api/review/submit", `{
			"prUrl": "`+testPRURL+`",
			"reviewId": "run-1",
			"modelId": "claude-sonnet-4-5",
			"comments": [{"path": "cart.go", "line": 3, "body": "nil check", "severity": "critical"}]
		}`)

		// assert
		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["success"])
		assert.Equal(t, float64(1), body["commentsCount"])
		assert.NotContains(t, body, "preview")
		mockService.AssertExpectations(t)
	})
	t.Run("failure - validation error is a bad request", func(t *testing.T) {
		// arrange
		mockService := new(testutil.MockReviewService)
		mockService.On("Submit", mock.Anything, mock.Anything).Return(nil, &service.PipelineError{
			Steps: store.NewSteps(),
			Err:   apperr.Validation("comments is required"),
		})
		e, api := newTestEcho(t)
		SetupReviewRoutes(api, mockService)

		// act
		rec := serve(e, http.MethodPost, "/api/review/submit",
			`{"prUrl":"`+testPRURL+`","modelId":"claude-sonnet-4-5"}`)

		// assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		res := decodeError(t, rec)
		assert.Equal(t, "comments is required", res.Error)
		assert.Empty(t, res.FailedStep)
		assert.Len(t, res.Steps, len(store.AllSteps))
	})
}
