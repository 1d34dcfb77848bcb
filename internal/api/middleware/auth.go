package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by the auth middleware
const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
)

var (
	ErrMissingToken = errors.New("authorization token is required")
	ErrInvalidToken = errors.New("invalid token")
)

type AuthMiddleware struct {
	jwtSecret []byte
	ttl       time.Duration
}

func NewAuthMiddleware(jwtSecret string, ttl time.Duration) *AuthMiddleware {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthMiddleware{
		jwtSecret: []byte(jwtSecret),
		ttl:       ttl,
	}
}

// GenerateToken signs an HS256 token carrying userID as the user_id claim
func (am *AuthMiddleware) GenerateToken(userID, email string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"exp":     now.Add(am.ttl).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(am.jwtSecret)
}

// ParseToken validates tokenString and returns its user_id and email claims
func (am *AuthMiddleware) ParseToken(tokenString string) (userID, email string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return am.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}
	userID, ok = claims["user_id"].(string)
	if !ok || userID == "" {
		return "", "", fmt.Errorf("%w: user_id claim must be a non-empty string", ErrInvalidToken)
	}
	email, _ = claims["email"].(string)
	return userID, email, nil
}

// RequireAuth rejects requests without a valid bearer token
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingToken.Error()})
			return
		}
		if !am.bind(c, tokenString) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidToken.Error()})
			return
		}
		c.Next()
	}
}

// OptionalAuth binds the token's user when one is presented. Requests without
// a token pass through anonymously; a presented but invalid token is rejected.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.Next()
			return
		}
		if !am.bind(c, tokenString) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidToken.Error()})
			return
		}
		c.Next()
	}
}

func (am *AuthMiddleware) bind(c *gin.Context, tokenString string) bool {
	userID, email, err := am.ParseToken(tokenString)
	if err != nil {
		slog.Debug("Rejected token", "path", c.Request.URL.Path, "error", err)
		return false
	}
	c.Set(ContextUserID, userID)
	c.Set(ContextEmail, email)
	return true
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter since browsers cannot set headers on websocket upgrades.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.Query("token")
}

// UserID returns the authenticated user id bound to c, or ""
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
