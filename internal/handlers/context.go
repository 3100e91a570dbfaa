package handlers

import (
	"context"

	"github.com/akratov/phoneauth/internal/models"
)

type ctxKey string

const principalKey ctxKey = "principal"

func NewContextWithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}
