package handlers

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"schoolhub-server-go/db"
	"schoolhub-server-go/models"
	"schoolhub-server-go/schedule"
)

// custom validation tags
const (
	clockTag   = "clock"
	weekdayTag = "weekday"
	monthTag   = "month"
	ymdTag     = "ymd"
)

var (
	translator   ut.Translator
	registerOnce sync.Once
)

// RegisterValidators installs the custom tags on gin's validator. It is safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		// Register the english error messages for validation errors.
		_en := en.New()
		uni := ut.New(_en, _en)
		translator, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, translator)

		// Use JSON tag names for errors instead of Go struct names.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation(clockTag, clockValidation)
		_ = v.RegisterValidation(weekdayTag, weekdayValidation)
		_ = v.RegisterValidation(monthTag, layoutValidation(db.MonthLayout))
		_ = v.RegisterValidation(ymdTag, layoutValidation(db.DateLayout))

		registerFn := func(ut.Translator) error { return nil }
		for _, tag := range []string{clockTag, weekdayTag, monthTag, ymdTag} {
			_ = v.RegisterTranslation(tag, translator, registerFn, translateCustomValidationErrs)
		}
	})
}

func translateCustomValidationErrs(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case clockTag:
		return fe.Field() + " must be a time of day as HH:MM"
	case weekdayTag:
		return fe.Field() + " must be one of mon, tue, wed, thu, fri, sat, sun"
	case monthTag:
		return fe.Field() + " must be a month as YYYY-MM"
	case ymdTag:
		return fe.Field() + " must be a date as YYYY-MM-DD"
	default:
		return ""
	}
}

// Custom Validators

func clockValidation(fl validator.FieldLevel) bool {
	_, err := schedule.ParseClock(fl.Field().String())
	return err == nil
}

func weekdayValidation(fl validator.FieldLevel) bool {
	return models.Weekday(fl.Field().String()).Valid()
}

func layoutValidation(layout string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		_, err := time.Parse(layout, fl.Field().String())
		return err == nil
	}
}

// bindingMessage turns a bind error into a readable message, listing each failed field
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && translator != nil {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fe.Translate(translator))
		}
		return strings.Join(msgs, "; ")
	}
	return err.Error()
}
