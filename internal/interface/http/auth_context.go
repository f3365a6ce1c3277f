package http

import (
	"github.com/gin-gonic/gin"

	"github.com/yanqian/prayer-companion/internal/domain/auth"
)

const memberClaimsKey = "member_claims"

func setClaims(c *gin.Context, claims auth.Claims) {
	c.Set(memberClaimsKey, claims)
}

func getClaims(c *gin.Context) (auth.Claims, bool) {
	value, ok := c.Get(memberClaimsKey)
	if !ok {
		return auth.Claims{}, false
	}
	claims, ok := value.(auth.Claims)
	return claims, ok
}

// requestMember returns the member id for request logs, or 0 for anonymous calls.
func requestMember(c *gin.Context) int64 {
	claims, ok := getClaims(c)
	if !ok {
		return 0
	}
	return claims.MemberID
}
