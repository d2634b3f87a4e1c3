package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope of every JSON answer.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version,omitempty"`
	TotalCount int       `json:"total_count,omitempty"`
}

// Error codes.
const (
	CodeInvalidRequest  = "invalid_request"
	CodeValidation      = "validation_error"
	CodeInvalidDataset  = "invalid_dataset"
	CodeNotFound        = "not_found"
	CodeNoDataset       = "no_dataset"
	CodeFeatureDisabled = "feature_disabled"
	CodePayloadTooLarge = "payload_too_large"
	CodeRateLimited     = "rate_limit_exceeded"
	CodeExportFailed    = "export_failed"
	CodeInternal        = "internal_server_error"
)

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

// respond writes a successful envelope.
func respond(c echo.Context, status int, data any) error {
	return respondWithMeta(c, status, data, nil)
}

func respondWithMeta(c echo.Context, status int, data any, meta *ResponseMeta) error {
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()
	meta.Version = apiVersion

	return c.JSON(status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      meta,
		RequestID: requestID(c),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// classify maps an error to a status and an API error.
func classify(err error) (int, *APIError) {
	var (
		bindErr     *echo.BindingError
		httpErr     *echo.HTTPError
		fieldErrs   validator.ValidationErrors
		missingCols *shared.MissingColumnsError
		nonNumeric  *shared.NonNumericFieldError
		missingVal  *shared.MissingValueError
		badLevel    *shared.UnresolvedLevelError
		tooLarge    *http.MaxBytesError
	)

	switch {
	case errors.As(err, &bindErr):
		return http.StatusBadRequest, &APIError{
			Code:    CodeInvalidRequest,
			Message: fmt.Sprintf("invalid value for parameter %q", bindErr.Field),
			Details: bindErr.Values,
		}

	case errors.As(err, &httpErr):
		code := CodeInvalidRequest
		switch httpErr.Code {
		case http.StatusNotFound:
			code = CodeNotFound
		case http.StatusTooManyRequests:
			code = CodeRateLimited
		case http.StatusRequestEntityTooLarge:
			code = CodePayloadTooLarge
		case http.StatusInternalServerError:
			code = CodeInternal
		}
		return httpErr.Code, &APIError{Code: code, Message: fmt.Sprint(httpErr.Message)}

	case errors.As(err, &fieldErrs):
		fields := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[fe.Field()] = fmt.Sprintf("failed %s", fe.Tag())
		}
		return http.StatusBadRequest, &APIError{Code: CodeValidation, Message: "request validation failed", Details: fields}

	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, &APIError{
			Code:    CodePayloadTooLarge,
			Message: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
		}

	case errors.As(err, &missingCols):
		return http.StatusUnprocessableEntity, &APIError{
			Code:    CodeInvalidDataset,
			Message: "required columns are missing",
			Details: map[string]any{"missing_columns": missingCols.Names},
		}
	case errors.As(err, &nonNumeric):
		return http.StatusUnprocessableEntity, &APIError{
			Code:    CodeInvalidDataset,
			Message: "a numeric field could not be parsed",
			Details: map[string]any{"field": nonNumeric.Field, "row": nonNumeric.Row, "value": nonNumeric.Value},
		}
	case errors.As(err, &missingVal):
		return http.StatusUnprocessableEntity, &APIError{
			Code:    CodeInvalidDataset,
			Message: "a required field is empty",
			Details: map[string]any{"field": missingVal.Field, "row": missingVal.Row},
		}
	case errors.As(err, &badLevel):
		return http.StatusUnprocessableEntity, &APIError{
			Code:    CodeInvalidDataset,
			Message: "a level tag is not recognised and the session level is mixed",
			Details: map[string]any{"row": badLevel.Row, "level": badLevel.Tag},
		}
	case errors.Is(err, shared.ErrEmptyDataset):
		return http.StatusUnprocessableEntity, &APIError{Code: CodeInvalidDataset, Message: "the dataset has no rows"}
	case errors.Is(err, shared.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, &APIError{
			Code:    CodeInvalidDataset,
			Message: "unsupported file format, upload CSV, TSV or XLSX",
		}

	case errors.Is(err, shared.ErrFeatureDisabled):
		return http.StatusForbidden, &APIError{Code: CodeFeatureDisabled, Message: "this feature is disabled"}
	case errors.Is(err, shared.ErrNoDataset):
		return http.StatusConflict, &APIError{Code: CodeNoDataset, Message: "load a dataset first"}
	case errors.Is(err, shared.ErrSessionNotFound):
		return http.StatusNotFound, &APIError{Code: CodeNotFound, Message: "session not found or expired"}
	case shared.IsNotFound(err):
		return http.StatusNotFound, &APIError{Code: CodeNotFound, Message: "student not found"}
	case shared.IsValidation(err):
		return http.StatusBadRequest, &APIError{Code: CodeInvalidRequest, Message: err.Error()}
	case errors.Is(err, shared.ErrExport):
		return http.StatusInternalServerError, &APIError{Code: CodeExportFailed, Message: "the report could not be generated"}
	}

	return http.StatusInternalServerError, &APIError{Code: CodeInternal, Message: "an unexpected error occurred"}
}

// newErrorHandler returns an echo.HTTPErrorHandler that writes the envelope.
func newErrorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, apiErr := classify(err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				logger.Err(err),
				logger.String("path", c.Path()),
				logger.String("request_id", requestID(c)),
			)
		}
		if c.Echo().Debug && apiErr.Details == nil {
			apiErr.Details = err.Error()
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, JSONResponse{
				Error:     apiErr,
				Meta:      &ResponseMeta{Timestamp: time.Now().UTC(), Version: apiVersion},
				RequestID: requestID(c),
			})
		}
		if werr != nil {
			log.Warn("failed to write error response", logger.Err(werr))
		}
	}
}
