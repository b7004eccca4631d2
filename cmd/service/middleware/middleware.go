package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evergreensystems/evergreen-ai/app/core"
	v1 "github.com/evergreensystems/evergreen-ai/app/logic/v1"
	"github.com/evergreensystems/evergreen-ai/app/response"
	"github.com/evergreensystems/evergreen-ai/pkg/errors"
	"github.com/evergreensystems/evergreen-ai/pkg/i18n"
)

const (
	ACCESS_TOKEN_HEADER_KEY = "X-Access-Token"
)

func I18n() gin.HandlerFunc {
	var allowList []string
	for k := range i18n.ALLOW_LANG {
		allowList = append(allowList, k)
	}
	l := i18n.NewLocalizer(allowList...)

	return response.ProvideResponseLocalizer(l)
}

func Cors(c *gin.Context) {
	method := c.Request.Method
	origin := c.Request.Header.Get("Origin")
	if origin != "" {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, UPDATE")
		c.Header("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization, X-Access-Token")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Access-Control-Allow-Origin, Access-Control-Allow-Headers, Cache-Control, Content-Language, Content-Type")
		c.Header("Access-Control-Allow-Credentials", "true")
	}
	if method == "OPTIONS" {
		c.AbortWithStatus(http.StatusNoContent)
	}
	c.Next()
}

// Authorization resolves the access token header to a user and threads the
// claims through the request context for the logic layer.
func Authorization(appCore *core.Core) gin.HandlerFunc {
	tracePrefix := "middleware.Authorization"
	return func(c *gin.Context) {
		tokenValue := c.GetHeader(ACCESS_TOKEN_HEADER_KEY)
		if tokenValue == "" {
			response.APIError(c, errors.New(tracePrefix+".GetHeader", i18n.ERROR_UNAUTHORIZED, nil).Code(http.StatusUnauthorized))
			return
		}

		token, err := appCore.Store().AccessTokenStore().GetAccessToken(c.Request.Context(), tokenValue)
		if err != nil {
			if err == sql.ErrNoRows {
				response.APIError(c, errors.New(tracePrefix+".GetAccessToken", i18n.ERROR_UNAUTHORIZED, nil).Code(http.StatusUnauthorized))
				return
			}
			response.APIError(c, errors.New(tracePrefix+".GetAccessToken", i18n.ERROR_INTERNAL, err))
			return
		}

		if token.ExpiresAt > 0 && token.ExpiresAt < time.Now().Unix() {
			response.APIError(c, errors.New(tracePrefix+".expired", i18n.ERROR_UNAUTHORIZED, nil).Code(http.StatusUnauthorized))
			return
		}

		claims := v1.TokenClaims{
			UserID: token.UserID,
			Token:  token.Token,
		}
		c.Set("user_id", token.UserID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), v1.TokenClaimsKey{}, claims))
	}
}

type LimiterFunc func(key string, opts ...core.LimitOption) gin.HandlerFunc

func UseLimit(appCore *core.Core, operation string, genKeyFunc func(c *gin.Context) string, opts ...core.LimitOption) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !appCore.UseLimiter(operation+":"+genKeyFunc(c), opts...).Allow() {
			response.APIError(c, errors.New("middleware.limiter", i18n.ERROR_TOO_MANY_REQUESTS, nil).Code(http.StatusTooManyRequests))
		}
	}
}
