package config

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	apperrors "github.com/darkkaiser/mydealz-monitor/internal/pkg/errors"
	"github.com/go-playground/validator/v10"
)

// telegramBotTokenRegex matches the bot identifier and secret joined by
// a colon, e.g. 123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11.
var telegramBotTokenRegex = regexp.MustCompile(`^\d{3,20}:[a-zA-Z0-9_-]{30,50}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report JSON names instead of Go field names in validation errors.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("telegram_bot_token", validateTelegramBotToken); err != nil {
		panic(fmt.Sprintf("fatal: failed to register the 'telegram_bot_token' validator: %v", err))
	}

	return v
}

func validateTelegramBotToken(fl validator.FieldLevel) bool {
	return telegramBotTokenRegex.MatchString(fl.Field().String())
}

// validateStruct runs the validator and converts the first failure into
// a readable typed error.
func validateStruct(s interface{}, contextName string) error {
	if err := validate.Struct(s); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			firstErr := validationErrors[0]

			switch firstErr.Tag() {
			case "required":
				return apperrors.Newf(apperrors.InvalidInput, "%s: required setting '%s' is missing", contextName, firstErr.Field())
			case "telegram_bot_token":
				return apperrors.Newf(apperrors.InvalidInput, "%s: the Telegram bot token (bot_token) has an invalid format", contextName)
			case "http_url":
				return apperrors.Newf(apperrors.InvalidInput, "%s: '%s' must be a valid HTTP(S) URL: '%v'", contextName, firstErr.Field(), firstErr.Value())
			default:
				return apperrors.Newf(apperrors.InvalidInput, "%s: setting '%s' is invalid (constraint: %s)", contextName, firstErr.Field(), firstErr.Tag())
			}
		}
		return apperrors.Wrapf(err, apperrors.InvalidInput, "%s validation failed", contextName)
	}
	return nil
}
