package api

import "github.com/dishahealth/coach/internal/user"

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	FullName string `json:"full_name" validate:"max=200"`
}

type onboardingRequest struct {
	Age               *int     `json:"age" validate:"omitnil,min=0,max=150"`
	Gender            string   `json:"gender" validate:"max=50"`
	Weight            *int     `json:"weight" validate:"omitnil,min=1,max=500"`
	Height            *int     `json:"height" validate:"omitnil,min=1,max=300"`
	MedicalConditions []string `json:"medical_conditions" validate:"max=50,dive,max=200"`
	Medications       []string `json:"medications" validate:"max=50,dive,max=200"`
	Allergies         []string `json:"allergies" validate:"max=50,dive,max=200"`
}

func (r onboardingRequest) profile() user.Profile {
	nonNil := func(v []string) []string {
		if v == nil {
			return []string{}
		}
		return v
	}
	return user.Profile{
		Age:               r.Age,
		Gender:            r.Gender,
		Weight:            r.Weight,
		Height:            r.Height,
		MedicalConditions: nonNil(r.MedicalConditions),
		Medications:       nonNil(r.Medications),
		Allergies:         nonNil(r.Allergies),
	}
}

type chatRequest struct {
	Message string `json:"message" validate:"required,min=1,max=10000"`
}

type typingRequest struct {
	IsTyping *bool `json:"is_typing" validate:"required"`
}

type memoryRequest struct {
	Category   string `json:"category" validate:"required,max=100"`
	Key        string `json:"key" validate:"required,max=200"`
	Value      string `json:"value" validate:"required"`
	Importance int    `json:"importance" validate:"omitempty,min=1,max=5"`
}
