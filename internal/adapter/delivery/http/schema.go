package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/internal/analytics"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const statusError = "error"

// shortenRequest represents a request to shorten a destination URL.
type shortenRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type ownerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// urlResponse is one entry of a URL listing.
type urlResponse struct {
	ShortID     string         `json:"short_id"`
	OriginalURL string         `json:"original_url"`
	TotalClicks int64          `json:"total_clicks"`
	Owner       *ownerResponse `json:"owner,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func toURLResponse(url *entity.URL) urlResponse {
	resp := urlResponse{
		ShortID:     url.ShortID,
		OriginalURL: url.OriginalURL,
		TotalClicks: url.VisitCount,
		CreatedAt:   url.CreatedAt,
	}

	if url.Owner != nil {
		resp.Owner = &ownerResponse{
			ID:    url.Owner.ID,
			Name:  url.Owner.Name,
			Email: url.Owner.Email,
		}
	}

	return resp
}

func toURLResponses(urls []entity.URL) []urlResponse {
	resp := make([]urlResponse, 0, len(urls))
	for i := range urls {
		resp = append(resp, toURLResponse(&urls[i]))
	}
	return resp
}

type shortenResponse struct {
	ShortID     string        `json:"short_id"`
	OriginalURL string        `json:"original_url"`
	WasExisting bool          `json:"was_existing"`
	URLs        []urlResponse `json:"urls"`
}

// visitResponse carries the visit time as epoch milliseconds and as RFC 3339 text.
type visitResponse struct {
	Timestamp int64  `json:"timestamp"`
	Time      string `json:"time"`
}

func toVisitResponses(visits []entity.Visit, loc *time.Location) []visitResponse {
	if loc == nil {
		loc = time.UTC
	}

	resp := make([]visitResponse, 0, len(visits))
	for _, v := range visits {
		resp = append(resp, visitResponse{
			Timestamp: v.Timestamp.UnixMilli(),
			Time:      v.Timestamp.In(loc).Format(time.RFC3339),
		})
	}
	return resp
}

type urlStatsResponse struct {
	ShortID     string          `json:"short_id"`
	TotalClicks int64           `json:"total_clicks"`
	Analytics   []visitResponse `json:"analytics"`
}

func toURLStatsResponse(url *entity.URL) urlStatsResponse {
	return urlStatsResponse{
		ShortID:     url.ShortID,
		TotalClicks: int64(len(url.Visits)),
		Analytics:   toVisitResponses(url.Visits, time.UTC),
	}
}

type clickData struct {
	ByDate     map[string]int `json:"by_date"`
	ByHour     map[string]int `json:"by_hour"`
	Last7Days  map[string]int `json:"last_7_days"`
	Last30Days map[string]int `json:"last_30_days"`
}

type analyticsResponse struct {
	ShortID      string          `json:"short_id"`
	OriginalURL  string          `json:"original_url"`
	TotalClicks  int             `json:"total_clicks"`
	ClickData    clickData       `json:"click_data"`
	RecentClicks []visitResponse `json:"recent_clicks"`
	Timezone     string          `json:"timezone"`
}

func windowMap(window []analytics.DayCount) map[string]int {
	m := make(map[string]int, len(window))
	for _, dc := range window {
		m[dc.Date] = dc.Clicks
	}
	return m
}

func toAnalyticsResponse(url *entity.URL, report *analytics.Report) analyticsResponse {
	byHour := make(map[string]int, len(report.ByHour))
	for hour, clicks := range report.ByHour {
		byHour[strconv.Itoa(hour)] = clicks
	}

	return analyticsResponse{
		ShortID:     url.ShortID,
		OriginalURL: url.OriginalURL,
		TotalClicks: report.TotalClicks,
		ClickData: clickData{
			ByDate:     report.ByDate,
			ByHour:     byHour,
			Last7Days:  windowMap(report.Last7Days),
			Last30Days: windowMap(report.Last30Days),
		},
		RecentClicks: toVisitResponses(report.RecentClicks, report.Location),
		Timezone:     report.Location.String(),
	}
}

type userResponse struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  entity.Role `json:"role"`
}

func toUserResponse(user *entity.User) userResponse {
	return userResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse represents a structured error response.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []validationError `json:"errors,omitempty"`
}

func newErrorResponse(msg string) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: msg,
	}
}

var (
	emptyRequestBodyResponse   = newErrorResponse("empty request body")
	invalidRequestBodyResponse = newErrorResponse("invalid request body")
	invalidInputResponse       = newErrorResponse("url is required")
	urlNotFoundResponse        = newErrorResponse("short url not found")
	notAuthenticatedResponse   = newErrorResponse("not authenticated")
	invalidTokenResponse       = newErrorResponse("invalid token")
	accessDeniedResponse       = newErrorResponse("access denied")
	tooManyRequestsResponse    = newErrorResponse("too many requests")
	unavailableResponse        = newErrorResponse("storage unavailable")
	serverErrorResponse        = newErrorResponse("server error occurred")
)

func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "url":
		return "invalid url"
	default:
		return "invalid value"
	}
}

func validationErrorResponse(err error) errorResponse {
	resp := newErrorResponse("validation error")

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		for _, e := range errs {
			resp.Errors = append(resp.Errors, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return resp
}
