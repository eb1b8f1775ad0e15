package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	gateway "github.com/ryuka-api/ryuka/internal"
	"github.com/ryuka-api/ryuka/internal/app"
)

// resolveResponse is the success body of a resolve endpoint.
type resolveResponse struct {
	Status   bool            `json:"status"`
	Data     json.RawMessage `json:"data"`
	Cached   bool            `json:"cached"`
	CacheAge string          `json:"cache_age,omitempty"`
	URL      string          `json:"url"`
}

// dataResponse is the success body of every other endpoint.
type dataResponse struct {
	Status bool `json:"status"`
	Data   any  `json:"data"`
}

// failureResponse is the body of every error answer.
type failureResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func failure(message, detail, reason string) failureResponse {
	return failureResponse{Message: message, Error: detail, Reason: reason}
}

func success(data any) dataResponse {
	return dataResponse{Status: true, Data: data}
}

// resolved renders a resolution. A valid JSON payload is embedded verbatim,
// anything else is carried as a JSON string.
func resolved(res *gateway.Resolution) resolveResponse {
	out := resolveResponse{
		Status: true,
		Data:   payload(res.Data),
		Cached: res.Cached,
		URL:    res.Target.URL,
	}
	if res.Cached {
		out.CacheAge = cacheAge(res.Age)
	}
	return out
}

func payload(body []byte) json.RawMessage {
	if gjson.ValidBytes(body) {
		return body
	}
	b, _ := json.Marshal(string(body))
	return b
}

// cacheAge formats whole elapsed seconds, e.g. "42s".
func cacheAge(d time.Duration) string {
	return strconv.FormatInt(int64(d/time.Second), 10) + "s"
}

// statusClientClosedRequest is nginx's status for a client that left before
// the response was ready.
const statusClientClosedRequest = 499

func errorStatus(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, gateway.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrAllProvidersFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and a failure body. Input errors carry
// their code, fetch failures carry the classified reason, and unexpected
// errors are logged and sanitized.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)

	var inErr *app.InputError
	switch {
	case errors.As(err, &inErr):
		writeJSON(w, status, failure(inErr.Code, inErr.Detail, ""))
	case status == http.StatusBadRequest:
		writeJSON(w, status, failure("bad_request", err.Error(), ""))
	case status == http.StatusNotFound:
		writeJSON(w, status, failure("not_found", "", ""))
	case status == http.StatusBadGateway:
		writeJSON(w, status, failure("fetch_failed", err.Error(), app.Reason(err)))
	case status == statusClientClosedRequest:
		slog.LogAttrs(r.Context(), slog.LevelDebug, "client went away",
			slog.String("path", r.URL.Path),
			slog.String("request_id", gateway.RequestIDFromContext(r.Context())),
		)
		writeJSON(w, status, failure("client_closed_request", "", ""))
	default:
		slog.LogAttrs(r.Context(), slog.LevelError, "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
			slog.String("request_id", gateway.RequestIDFromContext(r.Context())),
		)
		writeJSON(w, status, failure("internal_error", "internal server error", ""))
	}
}

// jsonCT is a pre-allocated header value slice. Direct map assignment
// (w.Header()["Content-Type"] = jsonCT) avoids the []string{v} alloc
// that Header.Set creates on every call.
var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
