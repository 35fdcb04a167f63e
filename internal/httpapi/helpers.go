package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/go-chi/chi/v5/middleware"

	"deliveryService/internal/apperr"
	"deliveryService/internal/logx"
)

const bodyLimit = 1 << 20

type errResponse struct {
	Error string `json:"error"`
}

func reqID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return "-"
}

func writeJSON(log logx.Logger, w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Error("json encode", logx.String("request_id", reqID(r)), logx.Err(err))
	}
}

// writeError maps err onto a status code and an error body. Authentication
// failures get an empty message.
func writeError(log logx.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, apperr.Message(err)
	switch {
	case errors.Is(err, apperr.InvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.NotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.Conflict):
		status = http.StatusConflict
	case errors.Is(err, apperr.Unauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperr.Unauthenticated):
		status, msg = http.StatusUnauthorized, ""
	}
	fields := []logx.Field{logx.String("request_id", reqID(r)), logx.Int("status", status), logx.String("msg", msg)}
	if status == http.StatusInternalServerError {
		log.Error("http error", append(fields, logx.Err(err))...)
	} else {
		log.Info("http error", fields...)
	}
	writeJSON(log, w, r, status, errResponse{Error: msg})
}

// decodeJSON reads a single JSON value from the body. Type mismatches become
// InvalidArgument errors naming the offending field.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) && ute.Field != "" {
			return apperr.Invalid(ute.Field, "%s: value of type %s is not %s", ute.Field, ute.Value, expected(ute.Type))
		}
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("body", "request body is empty")
		}
		return apperr.Invalid("body", "request body is not valid JSON: %v", err)
	}
	if err := dec.Decode(new(struct{})); err != io.EOF {
		return apperr.Invalid("body", "request body has trailing data")
	}
	return nil
}

func expected(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct, reflect.Map:
		return "an object"
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64:
		return "a number"
	case reflect.String:
		return "a string"
	default:
		return fmt.Sprintf("a %s", t.Kind())
	}
}
