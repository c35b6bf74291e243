package identity

import (
	"context"

	"github.com/taskmanager/apiserver/types"
)

// Local adapts a local registration payload. It is always enabled and never
// federated.
type Local struct{}

func NewLocal() *Local { return &Local{} }

// LocalAssertion wraps a registration payload in the attribute shape Local reads.
func LocalAssertion(req types.RegisterRequest) Assertion {
	return Assertion{Attributes: map[string]any{
		"username":    req.Username,
		"email":       req.Email,
		"given_name":  req.Name.Given,
		"middle_name": req.Name.Middle,
		"family_name": req.Name.Family,
	}}
}

func (l *Local) Provider() types.Provider { return types.ProviderLocal }

func (l *Local) Enabled() bool { return true }

func (l *Local) ExtractEmail(_ context.Context, a Assertion) (string, error) {
	return stringAttr(a.Attributes, "email"), nil
}

func (l *Local) ExtractName(a Assertion) *types.FullName {
	name := types.FullName{
		Given:  stringAttr(a.Attributes, "given_name"),
		Middle: stringAttr(a.Attributes, "middle_name"),
		Family: stringAttr(a.Attributes, "family_name"),
	}
	if name.IsEmpty() {
		return nil
	}
	return &name
}

func (l *Local) ExtractUsername(a Assertion) string {
	return stringAttr(a.Attributes, "username")
}

func (l *Local) ExtractProviderID(a Assertion) string {
	return stringAttr(a.Attributes, "username")
}
