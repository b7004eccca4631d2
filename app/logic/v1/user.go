package v1

import (
	"context"
	"log/slog"

	"github.com/evergreensystems/evergreen-ai/app/core"
)

type TokenClaims struct {
	UserID string
	Token  string
}

type TokenClaimsKey struct{}

func InjectTokenClaim(ctx context.Context) (TokenClaims, bool) {
	claims, ok := ctx.Value(TokenClaimsKey{}).(TokenClaims)
	return claims, ok
}

type UserInfo struct {
	claims TokenClaims
}

func SetupUserInfo(ctx context.Context, _ *core.Core) UserInfo {
	claims, ok := InjectTokenClaim(ctx)
	if !ok {
		slog.Error("Not found user in context", slog.String("component", "logic.v1.SetupUserInfo"))
	}
	return UserInfo{claims: claims}
}

func (u UserInfo) GetUserInfo() TokenClaims {
	return u.claims
}
