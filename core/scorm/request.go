package scorm

import (
	"github.com/go-playground/validator/v10"

	"github.com/fpkuniversity/scorm-runtime/core"
)

// Request is the body of a runtime API call.
type Request struct {
	Action       string   `json:"action" validate:"required"`
	EnrollmentID string   `json:"enrollmentId" validate:"required,identifier"`
	SCOID        string   `json:"scoId" validate:"required,identifier"`
	Element      string   `json:"element"`
	Value        CMIValue `json:"value"`
	CMIData      CMIData  `json:"cmiData"`
}

func (r *Request) Key() Key {
	return Key{EnrollmentID: r.EnrollmentID, SCOID: r.SCOID}
}

func (r *Request) Validate(validate *validator.Validate) error {
	r.Action = core.CleanString(r.Action, true /* lower */)
	r.EnrollmentID = core.CleanString(r.EnrollmentID)
	r.SCOID = core.CleanString(r.SCOID)
	r.Element = core.CleanString(r.Element)
	return validate.Struct(r)
}
