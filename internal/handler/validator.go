package handler

import (
    "errors"
    "fmt"
    "reflect"
    "strings"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"
)

var errValidation = errors.New("validation failed")

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
    v *validator.Validate
}

func NewValidator() *Validator {
    v := validator.New(validator.WithRequiredStructEnabled())
    // report json names ("idNumber") rather than Go field names
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
        if name == "-" {
            return ""
        }
        return name
    })
    return &Validator{v: v}
}

// Validate returns an error wrapping errValidation whose text lists every
// failing field.
func (cv *Validator) Validate(i interface{}) error {
    err := cv.v.Struct(i)
    if err == nil {
        return nil
    }
    var ve validator.ValidationErrors
    if !errors.As(err, &ve) {
        return fmt.Errorf("%w: %v", errValidation, err)
    }
    msgs := make([]string, 0, len(ve))
    for _, fe := range ve {
        switch fe.Tag() {
        case "required":
            msgs = append(msgs, fe.Field()+" is required")
        case "email":
            msgs = append(msgs, fe.Field()+" must be a valid email")
        case "oneof":
            msgs = append(msgs, fe.Field()+" must be one of "+fe.Param())
        default:
            msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
        }
    }
    return fmt.Errorf("%w: %s", errValidation, strings.Join(msgs, "; "))
}

// bind decodes the body into req and validates it.  Both failures are
// reported as errValidation.
func bind(c echo.Context, req interface{}) error {
    if err := c.Bind(req); err != nil {
        return fmt.Errorf("%w: invalid body", errValidation)
    }
    if err := c.Validate(req); err != nil {
        if errors.Is(err, errValidation) {
            return err
        }
        return fmt.Errorf("%w: %v", errValidation, err)
    }
    return nil
}
