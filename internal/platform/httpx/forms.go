package httpx

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports fields by their `form` tag, so
// errors line up with the input names in the templates.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// FieldErrors converts a validation failure into one message per form field.
// Any other error ends up under "general".
func FieldErrors(err error) map[string]string {
	out := make(map[string]string)
	if err == nil {
		return out
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		out["general"] = MsgInvalid
		return out
	}
	for _, fe := range fieldErrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Campo obrigatório"
	case "email":
		return "E-mail inválido"
	case "min":
		return "Mínimo de " + fe.Param() + " caracteres"
	case "max":
		return "Máximo de " + fe.Param() + " caracteres"
	case "len":
		return "Deve ter " + fe.Param() + " caracteres"
	case "numeric":
		return "Use apenas números"
	case "datetime":
		return "Data inválida"
	case "gt", "gte":
		return "Valor deve ser maior que " + fe.Param()
	case "oneof":
		return "Opção inválida"
	default:
		return MsgInvalid
	}
}

// ParseMoney reads a pt-BR or plain decimal amount: "1.234,56", "1234,56" and
// "1234.56" all parse to 1234.56. Blank input is zero.
func ParseMoney(raw string) (float64, bool) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "R$"))
	if raw == "" {
		return 0, true
	}
	if strings.Contains(raw, ",") {
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.Replace(raw, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil
}
