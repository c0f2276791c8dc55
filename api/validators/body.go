package validators

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/texnika/texnika-backend/pkg/enums"
	pkgerrors "github.com/texnika/texnika-backend/pkg/errors"
)

// MaxBodyBytes caps every JSON request body.
const MaxBodyBytes = 1 << 20

var validate = buildValidator()

func buildValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	v.RegisterValidation("plan_code", func(fl validator.FieldLevel) bool {
		return enums.PlanCode(fl.Field().String()).IsValid()
	})
	v.RegisterValidation("subject_type", func(fl validator.FieldLevel) bool {
		return enums.SubjectType(fl.Field().String()).IsValid()
	})
	return v
}

// DecodeJSONBody strictly decodes one JSON document into dest and runs its
// validate tags. An empty body is a validation error.
func DecodeJSONBody(r *http.Request, dest any) error {
	raw, err := readBody(r)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body required")
	}
	return decodeAndValidate(raw, dest)
}

// DecodeOptionalJSONBody is DecodeJSONBody that leaves dest untouched when
// the body is absent or blank.
func DecodeOptionalJSONBody(r *http.Request, dest any) error {
	raw, err := readBody(r)
	if err != nil || len(raw) == 0 {
		return err
	}
	return decodeAndValidate(raw, dest)
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	defer r.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	if len(raw) > MaxBodyBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request body too large")
	}
	return bytes.TrimSpace(raw), nil
}

func decodeAndValidate(raw []byte, dest any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed JSON body").
			WithDetails(map[string]any{"error": err.Error()})
	}
	if dec.Decode(&struct{}{}) != io.EOF {
		return pkgerrors.New(pkgerrors.CodeValidation, "body must hold a single JSON value")
	}
	return Struct(dest)
}

// Struct runs the validate tags on v.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Namespace()] = describe(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func describe(fe validator.FieldError) string {
	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + param
	case "max", "lte":
		return "must be at most " + param
	case "uuid", "uuid4":
		return "must be a valid uuid"
	case "oneof":
		return "must be one of [" + param + "]"
	case "plan_code":
		return "must be a known plan code"
	case "subject_type":
		return "must be LISTING or SPECIALIST"
	default:
		return "is invalid"
	}
}
