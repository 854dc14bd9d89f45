package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"contract-engine/types"
)

const principalKey = "principal"

// Claims is the token shape the identity collaborator mints: the engine
// trusts the already-verified principal id, role claim and explicit grants
// and never authenticates anyone itself.
type Claims struct {
	Role   types.Role    `json:"role"`
	Grants []types.Grant `json:"grants,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken mints a token for a principal. Used by tests and local
// tooling; production tokens come from the identity collaborator.
func GenerateToken(principalID string, role types.Role, grants []types.Grant, secret string, ttl time.Duration) (string, error) {
	claims := Claims{
		Role:   role,
		Grants: grants,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// AuthMiddleware validates the bearer token and stores the principal in the
// request context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}
		if claims.Subject == "" || claims.Role == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token missing principal or role claim"})
			c.Abort()
			return
		}

		c.Set(principalKey, &types.Principal{
			ID:     claims.Subject,
			Role:   claims.Role,
			Grants: claims.Grants,
		})
		c.Next()
	}
}

// GetPrincipal returns the authenticated principal from the context.
func GetPrincipal(c *gin.Context) *types.Principal {
	if v, exists := c.Get(principalKey); exists {
		if p, ok := v.(*types.Principal); ok {
			return p
		}
	}
	return nil
}

// SetPrincipal injects a principal directly, for handler tests.
func SetPrincipal(c *gin.Context, p *types.Principal) {
	c.Set(principalKey, p)
}
