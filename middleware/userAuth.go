package middleware

import (
	"net/http"
	"strings"

	userRepo "cmsledger/database/repository/user"
	"cmsledger/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{Message: message})
}

// JWTAuthUserMiddleware accepts a signed user token and sets the user id in context.
// When users is set the account must still exist.
func JWTAuthUserMiddleware(users userRepo.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			unauthorized(c, "Insufficient authorization")
			return
		}
		userID, role, err := utils.ExtractClaims(token)
		if err != nil {
			unauthorized(c, "Insufficient authorization")
			return
		}

		if users != nil && role != utils.RoleOperator {
			if _, err := users.GetByID(c.Request.Context(), userID); err != nil {
				zap.L().Warn("token for unknown user", zap.String("userId", userID), zap.Error(err))
				unauthorized(c, "Authentication error")
				return
			}
		}

		c.Set(utils.CtxUserID, userID)
		c.Set(utils.CtxRole, role)
		if role == utils.RoleOperator {
			c.Set(utils.CtxOperatorID, userID)
		}
		c.Next()
	}
}
