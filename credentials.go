package session

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// RegisterInput carries the fields needed to create a new identity.
type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url"`
}

// Validate enforces the minimal identity backend requirements before we pay
// for a network round trip.
func (r RegisterInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 128)),
		validation.Field(&r.DisplayName, validation.Required, validation.Length(1, 120)),
		validation.Field(&r.PhotoURL, is.URL),
	)
}
