// Package validation проверяет входные структуры с помощью
// go-playground/validator v10. Валидатор создается один раз и
// регистрирует собственное правило regno для номеров зачетки.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/users"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator возвращает общий экземпляр валидатора
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// В сообщениях используем имена полей из json тегов
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = validate.RegisterValidation("regno", func(fl validator.FieldLevel) bool {
			return users.IsValidRegNo(fl.Field().String())
		})
		// max считает символы, а bcrypt ограничивает байты
		_ = validate.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
			return len(fl.Field().String()) <= users.MaxPasswordBytes
		})
		_ = validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return users.Role(fl.Field().String()).Valid()
		})
	})

	return validate
}

// ValidateStruct проверяет структуру; ошибка имеет вид KindValidation
func ValidateStruct(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return apperrors.Wrap(apperrors.KindValidation, "Validation failed", err)
	}

	messages := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		messages = append(messages, translateError(fe))
	}
	return apperrors.Wrap(apperrors.KindValidation, strings.Join(messages, "; "), err)
}

var errorMessageTemplates = map[string]string{
	"required":  "%s is required",
	"email":     "%s must be a valid email address",
	"alpha":     "%s must contain only letters",
	"regno":     "%s must be a valid registration number, e.g. 283/BSC.SE/T/2018",
	"role":      "%s must be one of: admin, lecturer, student",
	"bcryptlen": "%s must be at most 72 bytes",
}

var errorMessageWithParam = map[string]string{
	"oneof":   "%s must be one of: %s",
	"eqfield": "%s must match %s",
	"nefield": "%s must differ from %s",
}

func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()
	param := fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		if tag == "eqfield" || tag == "nefield" {
			param = snake(param)
		}
		return fmt.Sprintf(template, field, param)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}

// snake переводит имя поля Go из параметра eqfield в имя json: NewPassword -> new_password
func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
