// File: utils/constants.go
package utils

// CompletionCachePrefix prefixes Redis keys holding replayable completion results, keyed by order id.
const CompletionCachePrefix = "ledger:completion:"

// Context keys set by the auth middleware.
const (
	CtxUserID     = "userID"
	CtxRole       = "role"
	CtxOperatorID = "operatorID"
)

const RoleOperator = "admin"
