package echoapi

import (
	"github.com/go-playground/validator/v10"
)

type (
	// CheckoutRequest only requires the amount to be present; it is not checked against the course fee.
	CheckoutRequest struct {
		Amount *float64 `json:"amount" validate:"required"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}
)

func (cr *CheckoutRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(cr)
}
