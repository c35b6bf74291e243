package services

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/taskmanager/apiserver/types"
)

const (
	MsgUsernameRequired = "Username is required"
	MsgEmailInvalid     = "Email is required and must be a valid email"
	MsgPasswordWeak     = "Password is required and must have at least 8 characters, one uppercase letter, one lowercase letter, one number and one special character"
	MsgAgeOutOfRange    = "Age is required and must be between 13 and 120"
	MsgPasswordTooLong  = "Password must be at most 72 bytes long"
)

const (
	minPasswordLength = 8
	// bcrypt refuses longer input.
	maxPasswordBytes  = 72
	passwordSpecials  = "!@#$%^&*()"
	minAge            = 13
	maxAge            = 120
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,6}$`)

// ValidateRegistration checks every field of a registration request and
// reports one error message per failed rule.
func ValidateRegistration(req types.RegisterRequest) types.Result {
	var result types.Result
	if strings.TrimSpace(req.Username) == "" {
		result.AddError(MsgUsernameRequired)
	}
	if !emailPattern.MatchString(strings.TrimSpace(req.Email)) {
		result.AddError(MsgEmailInvalid)
	}
	if !strongPassword(req.Password) {
		result.AddError(MsgPasswordWeak)
	}
	if len(req.Password) > maxPasswordBytes {
		result.AddError(MsgPasswordTooLong)
	}
	if req.Age < minAge || req.Age > maxAge {
		result.AddError(MsgAgeOutOfRange)
	}
	return result
}

func strongPassword(password string) bool {
	if len(password) < minPasswordLength {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	return upper && lower && digit && special
}
