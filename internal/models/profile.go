package models

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Profile holds the transient attributes a user submits before searching.
// Nothing here is persisted; the profile lives as long as the connection.
type Profile struct {
	// Name is the display name shown to the partner.
	Name string `json:"name" validate:"required,max=40"`
	// Gender is the user's own gender (e.g. "boy", "girl").
	Gender string `json:"gender" validate:"required,max=16"`
	// LookingFor is the gender the user wants to be paired with.
	LookingFor string `json:"lookingFor" validate:"required,max=16"`
	// Age is the user's age in years.
	Age int `json:"age" validate:"gte=1,lte=120"`
	// City is stored lowercased so that same-city matching is case-insensitive.
	City string `json:"city" validate:"required,max=64"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func profileValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Normalize trims every field and lowercases the matching keys.
func (p Profile) Normalize() Profile {
	return Profile{
		Name:       strings.TrimSpace(p.Name),
		Gender:     strings.ToLower(strings.TrimSpace(p.Gender)),
		LookingFor: strings.ToLower(strings.TrimSpace(p.LookingFor)),
		Age:        p.Age,
		City:       strings.ToLower(strings.TrimSpace(p.City)),
	}
}

// Validate checks the profile against its struct tags.
func (p Profile) Validate() error {
	return profileValidator().Struct(p)
}
