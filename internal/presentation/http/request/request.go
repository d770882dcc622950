// Package request binds and validates HTTP payloads.
package request

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/NovaByteCorp/deliverypro/pkg/errorbank"
)

// Validator adapts validator/v10 to echo.
type Validator struct {
	v *validator.Validate
}

// NewValidator builds a Validator reporting json field names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errorbank.BadRequest("payload inválido", errorbank.WithCause(err))
	}
	opts := []errorbank.Option{errorbank.WithCause(err)}
	for _, fe := range verrs {
		opts = append(opts, errorbank.WithDetail(fieldPath(fe.Namespace()), fe.Tag()))
	}
	return errorbank.BadRequest("payload inválido", opts...)
}

// Bind decodes the body into dst and validates it. Errors are AppErrors.
func Bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errorbank.BadRequest("payload inválido", errorbank.WithCause(err))
	}
	if err := c.Validate(dst); err != nil {
		if errorbank.Is(err, errorbank.KindBadRequest) {
			return err
		}
		return errorbank.BadRequest("payload inválido", errorbank.WithCause(err))
	}
	return nil
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
