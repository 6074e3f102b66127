package middleware

import (
	"crypto/rsa"
	"errors"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/api/response"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	jwtutil "github.com/wglickman33/mykosherdelivery-sub000/pkg/jwt"
)

const (
	claimsContextKey = "claims"
	actorContextKey  = "actor"
)

var ErrPublicKeyNotConfigured = errors.New("jwt public key not configured")

type Claims = jwtutil.Claims

// JWTAuth verifies RS256 bearer tokens and resolves the calling actor.
func JWTAuth(publicKey *rsa.PublicKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetActor(c); ok {
			c.Next()
			return
		}

		tokenString := tokenFromRequest(c)
		if tokenString == "" || publicKey == nil {
			response.Fail(c, 401, response.ErrUnauthorized, "unauthorized")
			c.Abort()
			return
		}

		claims, err := jwtutil.ParseAccessToken(tokenString, publicKey)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.Fail(c, 401, response.ErrTokenExpired, "token expired")
			} else {
				response.Fail(c, 401, response.ErrUnauthorized, "unauthorized")
			}
			c.Abort()
			return
		}

		actor, err := actorFromClaims(claims)
		if err != nil {
			response.Fail(c, 401, response.ErrUnauthorized, "unauthorized")
			c.Abort()
			return
		}

		c.Set(claimsContextKey, claims)
		c.Set(actorContextKey, actor)
		c.Next()
	}
}

func RequireCapability(capability model.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			response.Fail(c, 401, response.ErrUnauthorized, "unauthorized")
			c.Abort()
			return
		}
		if !actor.Has(capability) {
			response.Fail(c, 403, response.ErrForbidden, "forbidden")
			c.Abort()
			return
		}
		c.Next()
	}
}

func GetClaims(c *gin.Context) (*Claims, bool) {
	val, ok := c.Get(claimsContextKey)
	if !ok {
		return nil, false
	}
	claims, ok := val.(*Claims)
	if !ok || claims == nil {
		return nil, false
	}
	return claims, true
}

func GetActor(c *gin.Context) (model.Actor, bool) {
	val, ok := c.Get(actorContextKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := val.(model.Actor)
	return actor, ok
}

// LoadRSAPublicKey reads a PEM key from the inline value or, when empty, from path.
func LoadRSAPublicKey(inline, path string) (*rsa.PublicKey, error) {
	pem := strings.TrimSpace(inline)
	if pem == "" && strings.TrimSpace(path) != "" {
		// #nosec G304 -- path comes from operator configuration.
		buf, err := os.ReadFile(strings.TrimSpace(path))
		if err != nil {
			return nil, err
		}
		pem = string(buf)
	}
	if pem == "" {
		return nil, ErrPublicKeyNotConfigured
	}
	return jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
}

func actorFromClaims(claims *Claims) (model.Actor, error) {
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return model.Actor{}, err
	}
	role, ok := model.ParseUserRole(claims.Role)
	if !ok {
		return model.Actor{}, errors.New("unknown role")
	}

	var facilityID *uuid.UUID
	if claims.FacilityID != "" {
		parsed, err := uuid.Parse(claims.FacilityID)
		if err != nil {
			return model.Actor{}, err
		}
		facilityID = &parsed
	}

	return model.NewActor(userID, role, facilityID), nil
}

func tokenFromRequest(c *gin.Context) string {
	if cookieToken, err := c.Cookie("access_token"); err == nil && cookieToken != "" {
		return cookieToken
	}
	return bearerTokenFromRequest(c.GetHeader("Authorization"))
}
