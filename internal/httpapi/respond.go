package httpapi

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rickgao/asset-market/internal/api"
	"github.com/rickgao/asset-market/internal/model"
)

// Codes for failures that happen before the exchange is reached.
const (
	CodeBadRequest      model.Code = "BadRequest"
	CodeUnauthenticated model.Code = "Unauthenticated"
	CodeInternal        model.Code = "Internal"
)

const maxBodyBytes = 1 << 20

// requestError is a transport-level failure with its own status.
type requestError struct {
	status int
	code   model.Code
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, code: CodeBadRequest, msg: fmt.Sprintf(format, args...)}
}

// statusForKind maps a domain error kind to an HTTP status.
func statusForKind(k model.Kind) int {
	switch k {
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindPermissionDenied:
		return http.StatusForbidden
	case model.KindInvalidArgument:
		return http.StatusBadRequest
	case model.KindStateConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders err as an api.ErrorResponse. Errors outside the
// domain taxonomy are reported as Internal without their text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	var domErr *model.Error
	switch {
	case errors.As(err, &reqErr):
		writeJSON(w, reqErr.status, api.ErrorResponse{Code: reqErr.code, Message: reqErr.msg})
	case errors.As(err, &domErr):
		writeJSON(w, statusForKind(domErr.Kind), api.ErrorResponse{Code: domErr.Code, Message: domErr.Message})
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Code: CodeInternal, Message: "internal error"})
	}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}

func pathUint(r *http.Request, name string) (uint64, error) {
	raw := r.PathValue(name)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest("%s %q is not a non-negative integer", name, raw)
	}
	return v, nil
}

func assetID(r *http.Request) (model.AssetID, error) {
	v, err := pathUint(r, "id")
	return model.AssetID(v), err
}

func listingID(r *http.Request) (model.ListingID, error) {
	v, err := pathUint(r, "id")
	return model.ListingID(v), err
}

// statusRecorder captures the status written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// Hijack hands the connection to the feed's websocket upgrade.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rec.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", r.Header.Get(api.HeaderRequestID),
		)
	})
}
