package sec

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GenerateRSASignedJWT generates a jwt signed by RS256
// sub: client the token is issued to
func GenerateRSASignedJWT(iss string, sub string, privateKey *rsa.PrivateKey, kid string, expDuration time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(expDuration).Unix(),
		"iss": iss,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	return token.SignedString(privateKey)
}

// ParseRSASignedToken verifies a signed token (string) into a parsed jwt.Token object
func ParseRSASignedToken(signedToken string, keyFor func(*jwt.Token) (*rsa.PublicKey, error), opts ...jwt.ParserOption) (*jwt.Token, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithExpirationRequired())
	return jwt.Parse(signedToken, func(token *jwt.Token) (any, error) {
		// ensure alg is RS256
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return keyFor(token)
	}, opts...)
}

func GetClaimsFromParsedJWTToken(parsedToken *jwt.Token) (jwt.MapClaims, error) {
	if !parsedToken.Valid {
		return nil, errors.New("invalid token")
	}
	claimMap, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("failed to convert token claims to a map")
	}
	return claimMap, nil
}
