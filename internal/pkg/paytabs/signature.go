package paytabs

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/devmarket/marketplace-api/internal/pkg/gateway"
)

type HashAlgorithm string

const (
	HashMD5    HashAlgorithm = "MD5"
	HashSHA256 HashAlgorithm = "SHA256"
)

func NormalizeHashAlgorithm(raw string) (HashAlgorithm, error) {
	algo := HashAlgorithm(strings.ToUpper(strings.TrimSpace(raw)))
	switch algo {
	case "":
		return HashSHA256, nil
	case HashMD5, HashSHA256:
		return algo, nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", raw)
	}
}

// BuildSignatureBase joins merchant:secret:reference:amount:currency. The
// field order is fixed and amount is always rendered with two decimals.
func BuildSignatureBase(merchant, secret, reference string, amount decimal.Decimal, currency string) string {
	return strings.Join([]string{
		merchant,
		secret,
		reference,
		gateway.FormatAmount(amount),
		strings.ToUpper(currency),
	}, ":")
}

func Sign(base string, algo HashAlgorithm) (string, error) {
	switch algo {
	case HashMD5:
		h := md5.Sum([]byte(base))
		return hex.EncodeToString(h[:]), nil
	case HashSHA256:
		h := sha256.Sum256([]byte(base))
		return hex.EncodeToString(h[:]), nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
}

// VerifySignature compares hex digests case-insensitively in constant time.
func VerifySignature(expectedHex, receivedHex string) bool {
	expected := strings.ToLower(strings.TrimSpace(expectedHex))
	received := strings.ToLower(strings.TrimSpace(receivedHex))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}

// Signer computes and checks request and callback signatures for one merchant.
type Signer struct {
	merchant string
	secret   string
	algo     HashAlgorithm
}

func NewSigner(merchant, secret string, algo HashAlgorithm) *Signer {
	if algo == "" {
		algo = HashSHA256
	}
	return &Signer{merchant: merchant, secret: secret, algo: algo}
}

// Sign signs the payment tuple.
func (s *Signer) Sign(reference string, amount decimal.Decimal, currency string) (string, error) {
	return Sign(BuildSignatureBase(s.merchant, s.secret, reference, amount, currency), s.algo)
}

// Verify reports whether signature matches the tuple. An unconfigured secret
// never verifies.
func (s *Signer) Verify(reference string, amount decimal.Decimal, currency, signature string) bool {
	if s == nil || s.secret == "" || signature == "" {
		return false
	}
	expected, err := s.Sign(reference, amount, currency)
	if err != nil {
		return false
	}
	return VerifySignature(expected, signature)
}
