package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
	"golang.org/x/crypto/bcrypt"
)

const (
	recoveryCodeCount  = 8
	recoveryCodeLength = 4 // each half of XXXX-XXXX
)

// recoveryCodeAlphabet excludes ambiguous characters (0/O, 1/I/L).
const recoveryCodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// TOTPSetup is the result of generating a new TOTP secret.
type TOTPSetup struct {
	Secret string // base32-encoded secret key
	URL    string // otpauth:// URL
	QRCode []byte // PNG image of the QR code
}

// RecoveryCodes holds freshly generated recovery codes.
type RecoveryCodes struct {
	Plaintext []string // shown to the user once
	Hashed    []string // bcrypt hashes for storage
}

// GenerateTOTPSecret generates a TOTP secret plus a scannable QR code PNG.
func GenerateTOTPSecret(issuer, accountName string) (*TOTPSetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, fmt.Errorf("generating TOTP secret: %w", err)
	}

	qrPNG, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("generating QR code: %w", err)
	}

	return &TOTPSetup{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRCode: qrPNG,
	}, nil
}

// ValidateTOTPCode reports whether code is valid for the current time window.
func ValidateTOTPCode(code, secret string) bool {
	return totp.Validate(code, secret)
}

// GenerateRecoveryCodes generates 8 codes in XXXX-XXXX format.
func GenerateRecoveryCodes() (*RecoveryCodes, error) {
	codes := &RecoveryCodes{
		Plaintext: make([]string, recoveryCodeCount),
		Hashed:    make([]string, recoveryCodeCount),
	}

	for i := range recoveryCodeCount {
		code, err := generateRecoveryCode()
		if err != nil {
			return nil, fmt.Errorf("generating recovery code %d: %w", i, err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing recovery code %d: %w", i, err)
		}

		codes.Plaintext[i] = code
		codes.Hashed[i] = string(hash)
	}

	return codes, nil
}

// MatchRecoveryCode checks a code against a list of bcrypt hashes and returns
// the index of the match, or -1.
func MatchRecoveryCode(code string, hashedCodes []string) int {
	normalized := strings.ToUpper(strings.TrimSpace(code))

	for i, hashed := range hashedCodes {
		if bcrypt.CompareHashAndPassword([]byte(hashed), []byte(normalized)) == nil {
			return i
		}
	}

	return -1
}

func generateRecoveryCode() (string, error) {
	alphabetLen := big.NewInt(int64(len(recoveryCodeAlphabet)))
	buf := make([]byte, 0, recoveryCodeLength*2+1)

	for i := range recoveryCodeLength * 2 {
		if i == recoveryCodeLength {
			buf = append(buf, '-')
		}

		idx, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("generating random character: %w", err)
		}

		buf = append(buf, recoveryCodeAlphabet[idx.Int64()])
	}

	return string(buf), nil
}
