package middleware

import (
	"cmsledger/config"
	"cmsledger/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// staticOperatorID identifies requests authenticated with the shared operator token.
const staticOperatorID = "operator"

// operatorIdentity accepts the bcrypt-hashed operator token or a JWT carrying the admin role.
func operatorIdentity(token string) (string, bool) {
	if hash := config.AppConfig.AdminTokenHash; hash != "" {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil {
			return staticOperatorID, true
		}
	}
	sub, role, err := utils.ExtractClaims(token)
	if err == nil && role == utils.RoleOperator {
		return sub, true
	}
	return "", false
}

// OperatorAuthMiddleware admits operators only.
func OperatorAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			unauthorized(c, "Missing or invalid Authorization header")
			return
		}
		operatorID, ok := operatorIdentity(token)
		if !ok {
			zap.L().Warn("operator authentication failed", zap.String("ip", ClientIP(c)), zap.String("path", c.FullPath()))
			unauthorized(c, "Unauthorized operator access")
			return
		}
		c.Set(utils.CtxOperatorID, operatorID)
		c.Set(utils.CtxRole, utils.RoleOperator)
		c.Next()
	}
}

// IsOperator reports whether the request was authenticated as an operator.
func IsOperator(c *gin.Context) bool {
	id, ok := c.Get(utils.CtxOperatorID)
	return ok && id != ""
}
