package authctx

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/base-api/auth"
	apperrors "github.com/kbukum/base-api/errors"
)

// Gate returns the request gate middleware: it builds an authentication
// context from the Authorization header and performs this package's only
// context write. On any failure the request is aborted with the builder's
// status and the handler never runs; a partially built context never
// reaches a handler.
func Gate(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ac, err := authenticator.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			var appErr *apperrors.AppError
			if !errors.As(err, &appErr) {
				appErr = apperrors.Internal(err)
			}
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}
		c.Request = c.Request.WithContext(Set(c.Request.Context(), ac))
		c.Next()
	}
}
