package main

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeptools/gw-typst/sec"
)

const (
	rsaKeyBits     = 2048
	keyIDLength    = 8
	privateSuffix  = "_private.pem"
	publicSuffix   = "_public.pem"
	keyDirFileMode = 0700
)

// generateKeyPair writes <kid>_private.pem and <kid>_public.pem into dir.
// Point auth.public_key_path at dir to accept tokens signed with the key.
func generateKeyPair(dir string) (string, error) {
	if err := os.MkdirAll(dir, keyDirFileMode); err != nil {
		return "", err
	}
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return "", err
	}
	kid, err := sec.GenerateKeyID(&priv.PublicKey, keyIDLength)
	if err != nil {
		return "", err
	}
	if err := sec.SavePrivatePEMKeyLocal(filepath.Join(dir, kid+privateSuffix), priv); err != nil {
		return "", err
	}
	if err := sec.SavePublicPEMKeyLocal(filepath.Join(dir, kid+publicSuffix), &priv.PublicKey); err != nil {
		return "", err
	}
	return kid, nil
}

// issueToken signs a token with the private key at path. The key id is
// taken from the file name.
func issueToken(path, issuer, subject string, ttl time.Duration) (string, error) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, privateSuffix) {
		return "", fmt.Errorf("%s: expected a <kid>%s file", path, privateSuffix)
	}
	priv, err := sec.LoadLocalPrivatePEMKey(path)
	if err != nil {
		return "", err
	}
	kid := strings.TrimSuffix(base, privateSuffix)
	return sec.GenerateRSASignedJWT(issuer, subject, priv, kid, ttl)
}
