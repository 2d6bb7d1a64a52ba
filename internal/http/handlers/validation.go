package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
)

var registerOnce sync.Once

// RegisterValidators installs the helpdesk binding tags on gin's validator:
//
//	report_status      pending|in-progress|on-hold|completed|rejected
//	role               master|admin|staff
//	priority           low|medium|high
//	urgency            critical|medium|low
//	notification_type  info|success|warning|error
//	faq_type           text|article|file
//
// Empty values pass; combine with required where a value is mandatory.
// Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		must := func(tag string, fn validator.Func) {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic(fmt.Sprintf("register %s validator: %v", tag, err))
			}
		}
		must("report_status", stringRule(func(s string) bool { return domain.ReportStatus(s).Valid() }))
		must("role", stringRule(func(s string) bool { return domain.Role(s).Valid() }))
		must("priority", oneOf("low", "medium", "high"))
		must("urgency", oneOf("critical", "medium", "low"))
		must("notification_type", stringRule(func(s string) bool { return domain.NotificationType(s).Valid() }))
		must("faq_type", oneOf(string(domain.FAQText), string(domain.FAQArticle), string(domain.FAQFile)))
	})
}

func stringRule(valid func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || valid(s)
	}
}

func oneOf(allowed ...string) validator.Func {
	return stringRule(func(s string) bool {
		for _, a := range allowed {
			if s == a {
				return true
			}
		}
		return false
	})
}

// bindMessage turns a binding error into a short client message naming the
// offending fields.
func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid JSON body"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
