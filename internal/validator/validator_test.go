package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type enumPayload struct {
	Direction string `validate:"omitempty,direction"`
	Priority  string `validate:"omitempty,priority"`
	Purpose   string `validate:"omitempty,distribution_purpose"`
	Recipient string `validate:"omitempty,recipient_type"`
}

func TestCustomEnumTags(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		payload enumPayload
		valid   bool
	}{
		{"all empty", enumPayload{}, true},
		{"valid direction upward", enumPayload{Direction: "upward"}, true},
		{"valid direction downward", enumPayload{Direction: "downward"}, true},
		{"invalid direction", enumPayload{Direction: "sideways"}, false},
		{"valid priority", enumPayload{Priority: "urgent"}, true},
		{"invalid priority", enumPayload{Priority: "critical"}, false},
		{"valid purpose", enumPayload{Purpose: "action"}, true},
		{"invalid purpose", enumPayload{Purpose: "fyi"}, false},
		{"valid recipient type", enumPayload{Recipient: "directorate"}, true},
		{"invalid recipient type", enumPayload{Recipient: "committee"}, false},
		{"case sensitive", enumPayload{Direction: "Upward"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.payload)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestRequiredFieldsStillEnforced(t *testing.T) {
	v := New()

	type createPayload struct {
		Subject   string `validate:"required,min=5"`
		Direction string `validate:"required,direction"`
	}

	assert.Error(t, v.Validate(createPayload{Subject: "Memo", Direction: "upward"}))
	assert.Error(t, v.Validate(createPayload{Subject: "Annual budget memo", Direction: ""}))
	assert.NoError(t, v.Validate(createPayload{Subject: "Annual budget memo", Direction: "upward"}))
}
