package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// messages maps validation tags to the text shown under a form field.
var messages = map[string]string{
	"required":      "To pole jest wymagane.",
	"firstname":     "Imię jest wymagane i musi zawierać tylko litery.",
	"username":      "Login jest nieprawidłowy lub już zajęty.",
	"email_pl":      "Adres e-mail jest nieprawidłowy lub już zajęty.",
	"password_len":  "Minimalna wymagana liczba znaków: 8",
	"password_sign": "Hasło musi zawierać liczbę lub znak specjalny.",
	"eqfield":       "Hasła nie są zgodne.",
	"max":           "Wartość jest za długa.",
}

const defaultMessage = "Nieprawidłowa wartość."

// FieldErrors maps a form field name to the message to show under it.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+fe[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Engine validates form structs tagged with `validate`. Field names in the
// result come from the `form` tag.
type Engine struct {
	validate *validator.Validate
}

func New() *Engine {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("firstname", stringRule(FirstName))
	_ = v.RegisterValidation("username", stringRule(Username))
	_ = v.RegisterValidation("email_pl", stringRule(Email))
	_ = v.RegisterValidation("password_len", stringRule(PasswordLength))
	_ = v.RegisterValidation("password_sign", stringRule(PasswordSign))
	return &Engine{validate: v}
}

func stringRule(pred func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return pred(fl.Field().String())
	}
}

// Struct validates s and returns nil or the per-field messages. Only the
// first failing rule of each field is reported.
func (e *Engine) Struct(s any) FieldErrors {
	err := e.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"": err.Error()}
	}
	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = Message(fe.Tag())
	}
	return out
}

// Var validates a single value against tags and returns the message of the
// first failing rule, or "" when the value passes.
func (e *Engine) Var(value any, tags string) string {
	err := e.validate.Var(value, tags)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return Message(verrs[0].Tag())
	}
	return defaultMessage
}

// Message returns the text shown for a failed validation tag.
func Message(tag string) string {
	if msg, ok := messages[tag]; ok {
		return msg
	}
	return defaultMessage
}
