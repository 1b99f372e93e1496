package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

const (
	// SessionExpiration defines how long a session token issued on join (or renew) stays valid.
	SessionExpiration = 1 * time.Hour

	// RenewWindow defines how long before expiry a client should ask for a fresh token.
	RenewWindow = 5 * time.Minute

	// TokenIssuer identifies the issuer of the token.
	TokenIssuer = "chatroom-server"
)

var (
	// ErrMissingUserID is returned when a token's claims do not identify a user.
	ErrMissingUserID = errors.New("token claims carry no user id")

	// ErrInvalidToken is returned when a token fails validation.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// GenerateToken creates and signs a new JWT Token string based on the provided Claims struct.
// The registered claims are overwritten with a fresh issue time and expiry.
func GenerateToken(claims *Claims, secretKey string, duration time.Duration) (string, error) {
	if claims.UserID == uuid.Nil {
		return "", ErrMissingUserID
	}

	now := time.Now()

	claims.StandardClaims = jwt.StandardClaims{
		ExpiresAt: now.Add(duration).Unix(),
		IssuedAt:  now.Unix(),
		Issuer:    TokenIssuer,
		Subject:   claims.UserID.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(secretKey))
}

// ParseToken parses and validates the JWT Token string using the provided secretKey.
func ParseToken(tokenString string, secretKey string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.UserID == uuid.Nil {
		return nil, ErrMissingUserID
	}

	return claims, nil
}

// ParseUnverified decodes the claims of a token without checking its signature.
// Clients use it to learn their own identity from the token the server issued;
// it must never be used to authorize anything.
func ParseUnverified(tokenString string) (*Claims, error) {
	claims := &Claims{}

	parser := &jwt.Parser{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, err
	}

	if claims.UserID == uuid.Nil {
		return nil, ErrMissingUserID
	}

	return claims, nil
}
