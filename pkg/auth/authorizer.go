package auth

import (
	"context"
	"fmt"

	"github.com/yukinko0825/recipe-site/pkg/recipe"
)

// CapabilityAuthorizer checks the principal in the context. It is the
// recipe repository's Authorizer.
type CapabilityAuthorizer struct{}

func (CapabilityAuthorizer) Authorize(ctx context.Context, capability string) error {
	p, err := GetPrincipal(ctx)
	if err != nil {
		return recipe.ErrUnauthorized
	}
	if !p.HasPermission(capability) {
		return fmt.Errorf("%w: %s lacks %s", recipe.ErrForbidden, p.GetID(), capability)
	}
	return nil
}
