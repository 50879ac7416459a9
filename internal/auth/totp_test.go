package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestGenerateTOTPSecret(t *testing.T) {
	setup, err := GenerateTOTPSecret("ToolHive", "admin@example.com")
	if err != nil {
		t.Fatalf("GenerateTOTPSecret returned error: %v", err)
	}

	if setup.Secret == "" {
		t.Fatal("expected non-empty secret")
	}
	if !strings.HasPrefix(setup.URL, "otpauth://totp/") {
		t.Fatalf("expected otpauth:// URL, got: %s", setup.URL)
	}
	if !strings.Contains(setup.URL, "ToolHive") {
		t.Fatalf("expected URL to contain issuer, got: %s", setup.URL)
	}

	// QR code should be a PNG.
	pngHeader := []byte{0x89, 0x50, 0x4E, 0x47}
	if len(setup.QRCode) < 4 {
		t.Fatal("QR code too short to be a valid PNG")
	}
	for i, b := range pngHeader {
		if setup.QRCode[i] != b {
			t.Fatalf("QR code byte %d: got 0x%02X, want 0x%02X", i, setup.QRCode[i], b)
		}
	}
}

func TestValidateTOTPCode(t *testing.T) {
	setup, err := GenerateTOTPSecret("ToolHive", "admin@example.com")
	if err != nil {
		t.Fatalf("GenerateTOTPSecret returned error: %v", err)
	}

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	if err != nil {
		t.Fatalf("totp.GenerateCode returned error: %v", err)
	}

	if !ValidateTOTPCode(code, setup.Secret) {
		t.Fatal("ValidateTOTPCode should accept a current valid code")
	}
	if ValidateTOTPCode("invalid", setup.Secret) {
		t.Fatal("ValidateTOTPCode should reject a non-numeric code")
	}
}

func TestGenerateRecoveryCodes(t *testing.T) {
	codes, err := GenerateRecoveryCodes()
	if err != nil {
		t.Fatalf("GenerateRecoveryCodes returned error: %v", err)
	}

	if len(codes.Plaintext) != 8 || len(codes.Hashed) != 8 {
		t.Fatalf("expected 8 codes, got %d plaintext / %d hashed", len(codes.Plaintext), len(codes.Hashed))
	}

	seen := make(map[string]bool)
	for i, code := range codes.Plaintext {
		if len(code) != 9 || code[4] != '-' {
			t.Fatalf("code %d has wrong format: %q (want XXXX-XXXX)", i, code)
		}
		for j, ch := range code {
			if j == 4 {
				continue
			}
			if !strings.ContainsRune(recoveryCodeAlphabet, ch) {
				t.Fatalf("code %d contains invalid character %q: %q", i, string(ch), code)
			}
		}
		if seen[code] {
			t.Fatalf("duplicate recovery code: %q", code)
		}
		seen[code] = true
	}
}

func TestMatchRecoveryCode(t *testing.T) {
	codes, err := GenerateRecoveryCodes()
	if err != nil {
		t.Fatalf("GenerateRecoveryCodes returned error: %v", err)
	}

	t.Run("valid code returns its index", func(t *testing.T) {
		if idx := MatchRecoveryCode(codes.Plaintext[2], codes.Hashed); idx != 2 {
			t.Fatalf("expected index 2, got %d", idx)
		}
	})

	t.Run("invalid code returns -1", func(t *testing.T) {
		if idx := MatchRecoveryCode("ZZZZ-ZZZZ", codes.Hashed); idx != -1 {
			t.Fatalf("expected -1, got %d", idx)
		}
	})

	t.Run("case and whitespace normalized", func(t *testing.T) {
		messy := "  " + strings.ToLower(codes.Plaintext[0]) + " "
		if idx := MatchRecoveryCode(messy, codes.Hashed); idx != 0 {
			t.Fatalf("expected index 0 for normalized code, got %d", idx)
		}
	})

	t.Run("empty list returns -1", func(t *testing.T) {
		if idx := MatchRecoveryCode("ABCD-2345", nil); idx != -1 {
			t.Fatalf("expected -1 for nil list, got %d", idx)
		}
	})
}
