// Package handler exposes the reservation services over HTTP.  Every
// handler binds and validates its request DTO, calls one service operation
// and maps service error codes onto HTTP statuses in one place.
package handler

import (
	"errors"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/van-seat-reservation/internal/service"
)

// statusByCode maps service error codes to HTTP statuses.
var statusByCode = map[service.Code]int{
	service.CodeValidation:          http.StatusBadRequest,
	service.CodeNotFound:            http.StatusNotFound,
	service.CodeConflict:            http.StatusConflict,
	service.CodeDuplicateName:       http.StatusConflict,
	service.CodeVanClosed:           http.StatusConflict,
	service.CodeHasActivePassengers: http.StatusConflict,
	service.CodeInvalidTransition:   http.StatusUnprocessableEntity,
	service.CodeFinalizedLocked:     http.StatusUnprocessableEntity,
	service.CodeUnexpected:          http.StatusInternalServerError,
}

// writeError renders err as {"error": code, "message": ...}.  Details of a
// structured error (such as existingReservation) are merged into the body.
// Unexpected errors keep their cause in the log, not in the response.
func writeError(c echo.Context, err error) error {
	var se *service.Error
	if !errors.As(err, &se) {
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": service.CodeUnexpected, "message": "internal error"})
	}
	status, ok := statusByCode[se.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	body := echo.Map{"error": se.Code, "message": se.Message}
	if status == http.StatusInternalServerError {
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		body["message"] = "internal error"
	}
	for k, v := range se.Details {
		body[k] = v
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": service.CodeValidation, "message": msg})
}

// RequestValidator plugs go-playground/validator into echo's c.Validate.
type RequestValidator struct {
	v *validator.Validate
}

// NewRequestValidator returns a validator for request DTOs.
func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{v: v}
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}

// bind decodes the body into req and validates it.  On failure the 400
// response has already been written and ok is false.
func bind(c echo.Context, req any) (ok bool, err error) {
	if err := c.Bind(req); err != nil {
		return false, badRequest(c, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return false, badRequest(c, validationMessage(err))
	}
	return true, nil
}

// validationMessage names the first failing field.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fe.Field() + " failed " + fe.Tag() + "=" + fe.Param()
		}
		return fe.Field() + " failed " + fe.Tag()
	}
	return err.Error()
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
