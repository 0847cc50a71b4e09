package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type signupPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(&signupPayload{Email: "not-an-email", Password: "abc"})
	require.Error(t, err)

	failures, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, failures, 2)
	require.Equal(t, "email", failures[0].Field)
	require.Equal(t, "password", failures[1].Field)
	require.Equal(t, "min", failures[1].Tag)
	require.Equal(t, "6", failures[1].Param)
}

func TestValidateStructPasses(t *testing.T) {
	require.NoError(t, ValidateStruct(&signupPayload{Email: "a@x.com", Password: "secret1"}))
}
