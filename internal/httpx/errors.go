package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-stock-orders/internal/orders"
)

// validationError is a malformed request, rejected before any service call.
type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

type errorResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		ve *validationError
		nf *orders.NotFoundError
		is *orders.InsufficientStockError
		te *orders.TransitionError
	)
	switch {
	case errors.As(err, &ve),
		errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrInvalidProduct):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &is), errors.As(err, &te), errors.Is(err, orders.ErrProductInUse):
		return http.StatusConflict
	case errors.Is(err, orders.ErrTransactionAborted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		if code == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	writeJSON(w, code, errorResp{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return invalid("invalid json: %v", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, invalid("invalid id %q", raw)
	}
	return id, nil
}
