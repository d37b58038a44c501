package helper

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"campusmap_backend/internals/logger"
)

// Error taxonomy shared by every service. Use errors.Is against these.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrPublishConflict  = errors.New("publish conflict")
	ErrStorageFailure   = errors.New("storage failure")
)

func NotFound(kind string, id uint) error {
	return errors.Wrapf(ErrNotFound, "%s %d", kind, id)
}

func Invalid(format string, args ...any) error {
	return errors.Wrapf(ErrValidationFailed, format, args...)
}

func Conflict(format string, args ...any) error {
	return errors.Wrapf(ErrPublishConflict, format, args...)
}

type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string        { return fmt.Sprintf("%s: %s: %v", e.op, ErrStorageFailure, e.err) }
func (e *storageError) Unwrap() error        { return e.err }
func (e *storageError) Is(target error) bool { return target == ErrStorageFailure }

// Storage classifies a persistence error. Errors that already belong to the
// taxonomy pass through; gorm.ErrRecordNotFound becomes ErrNotFound.
func Storage(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrValidationFailed),
		errors.Is(err, ErrPublishConflict), errors.Is(err, ErrStorageFailure):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrap(ErrNotFound, op)
	}
	return &storageError{op: op, err: err}
}

// StatusOf maps an error to its HTTP status.
func StatusOf(err error) int {
	var fe *fiber.Error
	var ve validator.ValidationErrors
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &ve), errors.Is(err, ErrValidationFailed):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrPublishConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// JsonErrorFrom writes the standard error body for err.
func JsonErrorFrom(c *fiber.Ctx, err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return JsonValidationError(c, ValidationFieldErrors(ve))
	}

	status := StatusOf(err)
	if status >= 500 {
		logger.App().WithError(err).WithField("path", c.Path()).Error("request failed")
		return JsonError(c, status, "internal server error")
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return JsonError(c, status, fe.Message)
	}
	return JsonError(c, status, err.Error())
}

// NewValidator reports field errors with their json names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func ValidationFieldErrors(ve validator.ValidationErrors) map[string][]string {
	out := make(map[string][]string, len(ve))
	for _, fe := range ve {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out[fe.Field()] = append(out[fe.Field()], msg)
	}
	return out
}
