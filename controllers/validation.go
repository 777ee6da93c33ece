package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/princinho/eventhub/apperrors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	registerOnce  sync.Once
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)
)

// RegisterValidators adds the custom tags to gin's validator and makes field
// errors use json names. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
			_, err := bson.ObjectIDFromHex(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernameRegex.MatchString(fl.Field().String())
		})
	})
}

// bindJSON decodes and validates the body, returning an *apperrors.Error.
func bindJSON(c *gin.Context, obj any) error {
	RegisterValidators()
	if err := c.ShouldBindJSON(obj); err != nil {
		return bindingError(err)
	}
	return nil
}

// validateStruct is used for payloads that do not come from the JSON body,
// like the "data" part of a multipart form.
func validateStruct(obj any) error {
	RegisterValidators()
	if err := binding.Validator.ValidateStruct(obj); err != nil {
		return bindingError(err)
	}
	return nil
}

func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(translate(verrs))
	}
	if errors.Is(err, io.EOF) {
		return apperrors.BadRequestf("request body is empty")
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return apperrors.Field(typeErr.Field, fmt.Sprintf("%s has an invalid type", typeErr.Field))
	}
	return apperrors.Wrap(apperrors.BadRequest, "invalid request body", err)
}

func translate(verrs validator.ValidationErrors) map[string][]string {
	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		fields[name] = append(fields[name], message(name, fe))
	}
	return fields
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is a required field"
	case "email":
		return field + " must be a valid email address"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at most %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or greater", field, fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s must match %s", field, lowerFirst(fe.Param()))
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "datetime":
		return field + " must be a date in yyyy-mm-dd format"
	case "objectid":
		return field + " must be a valid id"
	case "username":
		return field + " may only contain letters, digits, dots and underscores"
	default:
		return field + " is invalid"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// checkPasswordLength enforces PASSWORD_MIN_LENGTH, which cannot live in a
// static binding tag.
func checkPasswordLength(field, password string, min int) error {
	if len(password) < min {
		return apperrors.Field(field, fmt.Sprintf("%s must be at least %d characters long", field, min))
	}
	return nil
}

func parseObjectID(value, resource string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(value)
	if err != nil {
		return bson.NilObjectID, apperrors.NotFoundf(resource)
	}
	return id, nil
}
