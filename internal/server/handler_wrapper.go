package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	apierrors "github.com/avisek/frontend-mentor-solutions/internal/errors"
)

// Wrap wraps a handler function to work as an http.Handler.
// The function must have signature: func(context.Context, In) (*Out, error)
// where In is a struct whose fields are filled from the request. Query
// parameters are bound with `query:"name"` tags and path parameters with
// `path:"name"` tags.
//
// Example:
//
//	type DesignImagesRequest struct {
//	    ID string `query:"id"`
//	}
//
//	func (h *Handler) DesignImages(ctx context.Context, req DesignImagesRequest) (*DesignImagesResponse, error)
//
// The endpoints are read-only; a request body is ignored.
func Wrap[In any, Out any](fn func(context.Context, In) (*Out, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var input In
		populatePathParams(r, &input)
		var output *Out
		err := populateQueryParams(r, &input)
		if err == nil {
			output, err = fn(ctx, input)
		}
		if err != nil {
			statusCode := http.StatusInternalServerError
			errorCode := apierrors.ErrInternal
			details := make(map[string]any)

			var ewsErr apierrors.ErrorWithStatus
			if errors.As(err, &ewsErr) {
				statusCode = ewsErr.StatusCode()
				errorCode = ewsErr.Code()
				if d := ewsErr.Details(); d != nil {
					details = d
				}
			}

			if statusCode >= http.StatusInternalServerError {
				slog.ErrorContext(ctx, "Handler error", "err", err, "statusCode", statusCode, "code", errorCode)
			} else {
				slog.DebugContext(ctx, "Handler error", "err", err, "statusCode", statusCode, "code", errorCode)
			}
			writeErrorResponseWithCode(w, statusCode, errorCode, err.Error(), details)
			return
		}

		writeJSON(ctx, w, output)
	})
}

// writeJSON writes v with status 200. A *json.RawMessage is written
// unchanged so pre-formatted documents keep their indentation.
func writeJSON(ctx context.Context, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if raw, ok := v.(*json.RawMessage); ok {
		_, _ = w.Write(*raw)
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "err", err)
	}
}

// populatePathParams extracts path parameters from the request and populates
// struct fields tagged with `path:"paramName"`.
func populatePathParams(r *http.Request, input any) {
	elem, ok := structElem(input)
	if !ok {
		return
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("path")
		if tag == "" {
			continue
		}
		paramValue := r.PathValue(tag)
		if paramValue == "" {
			continue
		}
		if field.Type.Kind() == reflect.String {
			elem.Field(i).SetString(paramValue)
		}
	}
}

// populateQueryParams extracts query parameters from the request and populates
// struct fields tagged with `query:"paramName"`. A value that does not parse
// as the field's type is a bad request.
func populateQueryParams(r *http.Request, input any) error {
	elem, ok := structElem(input)
	if !ok {
		return nil
	}
	query := r.URL.Query()
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("query")
		if tag == "" {
			continue
		}
		paramValue := query.Get(tag)
		if paramValue == "" {
			continue
		}
		//nolint:exhaustive // Only string, int and bool are supported for query params
		switch field.Type.Kind() {
		case reflect.String:
			elem.Field(i).SetString(paramValue)
		case reflect.Int:
			intVal, err := strconv.Atoi(paramValue)
			if err != nil {
				return apierrors.BadRequest(fmt.Sprintf("invalid integer for %s: %q", tag, paramValue))
			}
			elem.Field(i).SetInt(int64(intVal))
		case reflect.Bool:
			b, err := strconv.ParseBool(paramValue)
			if err != nil {
				return apierrors.BadRequest(fmt.Sprintf("invalid boolean for %s: %q", tag, paramValue))
			}
			elem.Field(i).SetBool(b)
		default:
		}
	}
	return nil
}

func structElem(input any) (reflect.Value, bool) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Ptr {
		return reflect.Value{}, false
	}
	elem := val.Elem()
	return elem, elem.Kind() == reflect.Struct
}

// writeErrorResponseWithCode writes a detailed error response as JSON with code and details.
func writeErrorResponseWithCode(w http.ResponseWriter, statusCode int, code apierrors.ErrorCode, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
	if len(details) > 0 {
		response["details"] = details
	}
	_ = json.NewEncoder(w).Encode(response)
}
