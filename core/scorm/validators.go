package scorm

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/fpkuniversity/scorm-runtime/core"
)

var (
	lessonStatuses     = []string{"not attempted", "completed", "incomplete", "browsed", "failed", "passed"}
	completionStatuses = []string{"completed", "incomplete", "not attempted", "unknown"}
	successStatuses    = []string{"passed", "failed", "unknown"}

	invalidLessonStatusText     = "Invalid lesson status"
	invalidScoreRawText         = "Score must be between 0 and 100"
	invalidCompletionStatusText = "Invalid completion status"
	invalidSuccessStatusText    = "Invalid success status"
	invalidScoreScaledText      = "Scaled score must be between -1.0 and 1.0"

	elementRequiredTag  = "element_required"
	elementRequiredText = "element is required for getvalue and setvalue"
)

type valueRule func(value string) bool

func oneOf(allowed ...string) valueRule {
	return func(value string) bool {
		for _, a := range allowed {
			if value == a {
				return true
			}
		}
		return false
	}
}

func numberBetween(min, max float64) valueRule {
	return func(value string) bool {
		n, ok := parseDecimal(value)
		return ok && n >= min && n <= max
	}
}

type valueValidator struct {
	valid   valueRule
	message string
}

// valueValidators is intentionally partial: only the elements the summary columns depend on are
// checked, every other element is accepted as is.
var valueValidators = map[Standard]map[string]valueValidator{
	SCORM12: {
		ElemLessonStatus: {oneOf(lessonStatuses...), invalidLessonStatusText},
		ElemScoreRaw12:   {numberBetween(0, 100), invalidScoreRawText},
	},
	SCORM2004: {
		ElemCompletionStatus: {oneOf(completionStatuses...), invalidCompletionStatusText},
		ElemSuccessStatus:    {oneOf(successStatuses...), invalidSuccessStatusText},
		ElemScoreScaled:      {numberBetween(-1, 1), invalidScoreScaledText},
	},
}

// ValidateElement checks that value may be written to elem under std.
func ValidateElement(std Standard, elem, value string) error {
	if v, ok := valueValidators[std][elem]; ok && !v.valid(value) {
		return core.NewValidationError(nil, core.FieldError{Field: elem, Error: v.message})
	}
	return nil
}

// InitValidators registers the request validations of this package.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(requestStructValidation, Request{})
	core.RegisterCustomTranslation(validate, translator, elementRequiredTag, elementRequiredText)
}

// requestStructValidation requires an element for the actions that read or write one.
func requestStructValidation(sl validator.StructLevel) {
	req := sl.Current().Interface().(Request)
	switch req.Action {
	case ActionGetValue, ActionSetValue:
		if req.Element == "" {
			sl.ReportError(req.Element, "element", "Element", elementRequiredTag, "")
		}
	}
}
