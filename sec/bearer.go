package sec

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zeptools/gw-typst/requests"
	"github.com/zeptools/gw-typst/responses"
	"github.com/zeptools/gw-typst/routing"
)

// Ensure BearerAuth implements routing.HandlerWrapper
var _ routing.HandlerWrapper = (*BearerAuth)(nil)

var ErrNoBearer = errors.New("missing bearer token")

func ExtractBearerToken(header string) string {
	const prefix = "Bearer "
	prefixLen := len(prefix)
	if len(header) > prefixLen && header[:prefixLen] == prefix {
		return header[prefixLen:]
	}
	return ""
}

// BearerAuth verifies RS256 signed bearer tokens. Keys come either from a
// single public PEM file or from a directory of `<kid>_public.pem` files.
type BearerAuth struct {
	key      *rsa.PublicKey
	keys     *JWKS
	parserOp []jwt.ParserOption
}

func NewBearerAuth(path string, opts ...jwt.ParserOption) (*BearerAuth, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("auth keys: %w", err)
	}
	a := &BearerAuth{parserOp: opts}
	if fi.IsDir() {
		if a.keys, err = LoadPublicPEMKeysAsJWKS(path); err != nil {
			return nil, err
		}
		if len(a.keys.Keys) == 0 {
			return nil, fmt.Errorf("auth keys: no *_public.pem RSA key in %s", path)
		}
		log.Printf("[INFO][AUTH] %d public keys loaded from %s", len(a.keys.Keys), path)
		return a, nil
	}
	if a.key, err = LoadLocalPublicPEMKey(path); err != nil {
		return nil, fmt.Errorf("auth keys: %w", err)
	}
	log.Printf("[INFO][AUTH] public key loaded from %s", path)
	return a, nil
}

// Verify checks the Authorization header value and returns the claims.
func (a *BearerAuth) Verify(header string) (jwt.MapClaims, error) {
	signed := ExtractBearerToken(header)
	if signed == "" {
		return nil, ErrNoBearer
	}
	token, err := ParseRSASignedToken(signed, a.keyFor, a.parserOp...)
	if err != nil {
		return nil, err
	}
	return GetClaimsFromParsedJWTToken(token)
}

func (a *BearerAuth) keyFor(token *jwt.Token) (*rsa.PublicKey, error) {
	if a.keys == nil {
		return a.key, nil
	}
	kid, _ := token.Header["kid"].(string)
	jwk, err := a.keys.GetJWKByKID(kid)
	if err != nil {
		return nil, fmt.Errorf("kid %q: %w", kid, err)
	}
	return jwk.ToPublicKey()
}

// Wrap rejects requests without a valid token with 401.
func (a *BearerAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := a.Verify(r.Header.Get("Authorization")); err != nil {
			log.Printf("[WARN][AUTH] %s %s: %v", r.Method, requests.FullURL(r), err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="typst"`)
			responses.WriteText(w, http.StatusUnauthorized, "Invalid or missing bearer token.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
