package scorm

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpkuniversity/scorm-runtime/core"
)

func TestValidateElement(t *testing.T) {
	tests := []struct {
		std     Standard
		elem    string
		value   string
		wantErr string
	}{
		{SCORM12, ElemLessonStatus, "completed", ""},
		{SCORM12, ElemLessonStatus, "browsed", ""},
		{SCORM12, ElemLessonStatus, "not attempted", ""},
		{SCORM12, ElemLessonStatus, "bogus", invalidLessonStatusText},
		{SCORM12, ElemLessonStatus, "Completed", invalidLessonStatusText},
		{SCORM12, ElemScoreRaw12, "0", ""},
		{SCORM12, ElemScoreRaw12, "100", ""},
		{SCORM12, ElemScoreRaw12, "55.5", ""},
		{SCORM12, ElemScoreRaw12, "100.1", invalidScoreRawText},
		{SCORM12, ElemScoreRaw12, "-1", invalidScoreRawText},
		{SCORM12, ElemScoreRaw12, "abc", invalidScoreRawText},
		{SCORM12, ElemScoreRaw12, "", invalidScoreRawText},
		{SCORM12, "cmi.core.exit", "anything", ""},
		{SCORM2004, ElemCompletionStatus, "unknown", ""},
		{SCORM2004, ElemCompletionStatus, "passed", invalidCompletionStatusText},
		{SCORM2004, ElemSuccessStatus, "failed", ""},
		{SCORM2004, ElemSuccessStatus, "completed", invalidSuccessStatusText},
		{SCORM2004, ElemScoreScaled, "-1", ""},
		{SCORM2004, ElemScoreScaled, "0.9", ""},
		{SCORM2004, ElemScoreScaled, "1.5", invalidScoreScaledText},
		{SCORM2004, ElemScoreScaled, "-1.01", invalidScoreScaledText},
		{SCORM2004, ElemScoreScaled, "0x1p-1", invalidScoreScaledText},
		{SCORM2004, ElemScoreScaled, "NaN", invalidScoreScaledText},
		{SCORM12, ElemScoreRaw12, "0x32", invalidScoreRawText},
		{SCORM2004, ElemScoreRaw2004, "1000", ""},
		{SCORM2004, ElemLessonStatus, "bogus", ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.std)+" "+tt.elem+"="+tt.value, func(t *testing.T) {
			err := ValidateElement(tt.std, tt.elem, tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
			verr, ok := err.(*core.ValidationError)
			require.True(t, ok)
			assert.Equal(t, []core.FieldError{{Field: tt.elem, Error: tt.wantErr}}, verr.Fields)
		})
	}
}

func TestRequest_Validate(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	fieldsOf := func(err error) map[string]string {
		res := make(map[string]string)
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				res[fe.Field()] = fe.Translate(translator)
			}
		}
		return res
	}

	tests := []struct {
		name       string
		req        Request
		wantFields map[string]string
	}{
		{
			name:       "ok",
			req:        Request{Action: " Initialize ", EnrollmentID: "e1", SCOID: "s1"},
			wantFields: map[string]string{},
		},
		{
			name: "missing ids",
			req:  Request{Action: "state"},
			wantFields: map[string]string{
				"enrollmentId": "enrollmentId is required",
				"scoId":        "scoId is required",
			},
		},
		{
			name: "bad identifier",
			req:  Request{Action: "state", EnrollmentID: "e 1", SCOID: "s/1"},
			wantFields: map[string]string{
				"enrollmentId": "enrollmentId may only contain letters, digits and the characters _ - . :",
				"scoId":        "scoId may only contain letters, digits and the characters _ - . :",
			},
		},
		{
			name:       "getvalue needs element",
			req:        Request{Action: "getvalue", EnrollmentID: "e1", SCOID: "s1"},
			wantFields: map[string]string{"element": elementRequiredText},
		},
		{
			name:       "setvalue with element",
			req:        Request{Action: "setvalue", EnrollmentID: "e1", SCOID: "s1", Element: "cmi.location"},
			wantFields: map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := req.Validate(validate)
			assert.Equal(t, tt.wantFields, fieldsOf(err))
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
			}
		})
	}
}
