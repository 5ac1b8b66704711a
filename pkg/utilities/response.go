package utilities

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json field names instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status code and writes {"error": "..."}.
// Internal errors are logged and replaced with a generic message.
func WriteError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if !apperr.Public(err) {
		if logger != nil {
			logger.Errorw("request failed", "err", err)
		}
		msg = "internal error"
	}
	WriteJSON(w, status, map[string]string{"error": msg})
}

// DecodeJSON decodes the request body into dest and runs struct validation.
// Any failure is reported as apperr.ErrValidation.
func DecodeJSON(r *http.Request, dest any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return apperr.Wrap(apperr.ErrValidation, "invalid payload")
	}
	return ValidateStruct(dest)
}

// ValidateStruct runs validator tags on v.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.ErrValidation, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s %s", fe.Field(), validationMessage(fe)))
	}
	sort.Strings(msgs)
	return apperr.Wrap(apperr.ErrValidation, strings.Join(msgs, "; "))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of " + fe.Param()
	case "datetime":
		return "must match " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "eqfield":
		return "must match " + fe.Param()
	}
	return "is invalid"
}
