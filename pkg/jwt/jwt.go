package jwtutil

import (
	"crypto/rsa"
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var ErrMissingSubject = errors.New("token has no user id")

// Claims are issued by the storefront auth service. Only the public key is
// known here; signing is kept for tests and local tooling.
type Claims struct {
	UserID     string `json:"uid"`
	Role       string `json:"role"`
	FacilityID string `json:"facility_id,omitempty"`
	jwt.RegisteredClaims
}

func NewClaims(userID, role, facilityID string, expiry time.Duration) *Claims {
	now := time.Now().UTC()
	return &Claims{
		UserID:     userID,
		Role:       role,
		FacilityID: facilityID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
}

func GenerateAccessToken(claims *Claims, privateKey *rsa.PrivateKey) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(privateKey)
}

func ParseAccessToken(tokenStr string, publicKey *rsa.PublicKey) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	claims.normalize()
	if claims.UserID == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

func (c *Claims) normalize() {
	c.UserID = strings.TrimSpace(c.UserID)
	if c.UserID == "" {
		c.UserID = strings.TrimSpace(c.Subject)
	}
	c.Role = strings.ToLower(strings.TrimSpace(c.Role))
	c.FacilityID = strings.TrimSpace(c.FacilityID)
}
