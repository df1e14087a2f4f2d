package validator

import (
	"github.com/go-playground/validator/v10"
)

var directions = map[string]struct{}{
	"upward":   {},
	"downward": {},
}

var priorities = map[string]struct{}{
	"low":    {},
	"medium": {},
	"high":   {},
	"urgent": {},
}

var distributionPurposes = map[string]struct{}{
	"information": {},
	"action":      {},
	"comment":     {},
}

var recipientTypes = map[string]struct{}{
	"division":    {},
	"department":  {},
	"directorate": {},
}

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()

	// Custom validators for workflow enums
	v.RegisterValidation("direction", validateDirection)
	v.RegisterValidation("priority", validatePriority)
	v.RegisterValidation("distribution_purpose", validateDistributionPurpose)
	v.RegisterValidation("recipient_type", validateRecipientType)

	return &Validator{validate: v}
}

func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func validateDirection(fl validator.FieldLevel) bool {
	_, ok := directions[fl.Field().String()]
	return ok
}

func validatePriority(fl validator.FieldLevel) bool {
	_, ok := priorities[fl.Field().String()]
	return ok
}

func validateDistributionPurpose(fl validator.FieldLevel) bool {
	_, ok := distributionPurposes[fl.Field().String()]
	return ok
}

func validateRecipientType(fl validator.FieldLevel) bool {
	_, ok := recipientTypes[fl.Field().String()]
	return ok
}
