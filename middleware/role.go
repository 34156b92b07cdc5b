package middleware

import (
	userRepo "cmsledger/database/repository/user"
	"cmsledger/utils"

	"github.com/gin-gonic/gin"
)

// UserOrOperatorMiddleware admits operators and authenticated users. Ownership
// of the requested resource is checked by the handler.
func UserOrOperatorMiddleware(users userRepo.UserRepository) gin.HandlerFunc {
	userAuth := JWTAuthUserMiddleware(users)
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if operatorID, ok := operatorIdentity(token); ok {
				c.Set(utils.CtxOperatorID, operatorID)
				c.Set(utils.CtxRole, utils.RoleOperator)
				c.Next()
				return
			}
		}
		userAuth(c)
	}
}
