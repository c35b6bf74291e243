package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/taskmanager/apiserver/types"
)

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name string
		edit func(*types.RegisterRequest)
		want []string
	}{
		{name: "valid", edit: func(*types.RegisterRequest) {}},
		{name: "blank username", edit: func(r *types.RegisterRequest) { r.Username = "  " }, want: []string{MsgUsernameRequired}},
		{name: "email without tld", edit: func(r *types.RegisterRequest) { r.Email = "a@b" }, want: []string{MsgEmailInvalid}},
		{name: "email tld too long", edit: func(r *types.RegisterRequest) { r.Email = "a@b.abcdefg" }, want: []string{MsgEmailInvalid}},
		{name: "password too short", edit: func(r *types.RegisterRequest) { r.Password = "Aa1!aa" }, want: []string{MsgPasswordWeak}},
		{name: "password without special", edit: func(r *types.RegisterRequest) { r.Password = "Abcdefg1" }, want: []string{MsgPasswordWeak}},
		{name: "password special outside set", edit: func(r *types.RegisterRequest) { r.Password = "Abcdefg1?" }, want: []string{MsgPasswordWeak}},
		{name: "password without upper", edit: func(r *types.RegisterRequest) { r.Password = "abcdefg1!" }, want: []string{MsgPasswordWeak}},
		{name: "password at byte limit", edit: func(r *types.RegisterRequest) { r.Password = "Secr3t!pass" + strings.Repeat("a", 61) }},
		{name: "password over byte limit", edit: func(r *types.RegisterRequest) { r.Password = "Secr3t!pass" + strings.Repeat("a", 70) }, want: []string{MsgPasswordTooLong}},
		{name: "multibyte password over byte limit", edit: func(r *types.RegisterRequest) { r.Password = "Secr3t!pass" + strings.Repeat("é", 31) }, want: []string{MsgPasswordTooLong}},
		{name: "age too low", edit: func(r *types.RegisterRequest) { r.Age = 12 }, want: []string{MsgAgeOutOfRange}},
		{name: "age lower bound", edit: func(r *types.RegisterRequest) { r.Age = 13 }},
		{name: "age upper bound", edit: func(r *types.RegisterRequest) { r.Age = 120 }},
		{name: "age too high", edit: func(r *types.RegisterRequest) { r.Age = 121 }, want: []string{MsgAgeOutOfRange}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRegistration("alice", "alice@example.com")
			tt.edit(&req)
			result := ValidateRegistration(req)
			assert.Equal(t, len(tt.want), result.ErrorCount)
			if len(tt.want) > 0 {
				assert.Equal(t, tt.want, result.ErrorMessages)
			}
		})
	}
}
