package crypto

import (
	"strings"
	"testing"
)

const testSecret = "this-is-a-valid-32-character-key"

func TestNewVault_ValidSecret(t *testing.T) {
	v, err := NewVault(testSecret)
	if err != nil {
		t.Fatalf("NewVault() error = %v, want nil", err)
	}
	if v == nil {
		t.Fatal("NewVault() returned nil")
	}
}

func TestNewVault_ShortSecret(t *testing.T) {
	_, err := NewVault("short")
	if err != ErrInvalidKey {
		t.Errorf("NewVault() error = %v, want %v", err, ErrInvalidKey)
	}
}

func TestVault_RoundTrip(t *testing.T) {
	v, err := NewVault(testSecret)
	if err != nil {
		t.Fatalf("NewVault() error = %v", err)
	}

	testCases := []struct {
		name      string
		plaintext string
	}{
		{"api key", "AbCd1234EfGh"},
		{"password with symbols", "P@ssw0rd!#$%^&*()"},
		{"unicode", "пароль密码"},
		{"long secret", strings.Repeat("credential-", 20)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ciphertext, err := v.Encrypt(tc.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if ciphertext == tc.plaintext {
				t.Error("ciphertext should not equal plaintext")
			}

			decrypted, err := v.Decrypt(ciphertext)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if decrypted != tc.plaintext {
				t.Errorf("Decrypt() = %q, want %q", decrypted, tc.plaintext)
			}
		})
	}
}

func TestVault_EmptyInput_NoOp(t *testing.T) {
	v, _ := NewVault(testSecret)

	ciphertext, err := v.Encrypt("")
	if err != nil || ciphertext != "" {
		t.Errorf("Encrypt(\"\") = (%q, %v), want (\"\", nil)", ciphertext, err)
	}

	plaintext, err := v.Decrypt("")
	if err != nil || plaintext != "" {
		t.Errorf("Decrypt(\"\") = (%q, %v), want (\"\", nil)", plaintext, err)
	}
}

func TestVault_DecryptWithWrongKey_Fails(t *testing.T) {
	v1, _ := NewVault(testSecret)
	v2, _ := NewVault("another-perfectly-valid-32ch-key!")

	ciphertext, err := v1.Encrypt("sensitive")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if _, err := v2.Decrypt(ciphertext); err != ErrDecryptionFailed {
		t.Errorf("Decrypt() with wrong key error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestVault_DecryptMalformedInput_Fails(t *testing.T) {
	v, _ := NewVault(testSecret)

	cases := []struct {
		name  string
		input string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"too short", "YWJj"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := v.Decrypt(tc.input); err != ErrInvalidCiphertext {
				t.Errorf("Decrypt(%q) error = %v, want %v", tc.input, err, ErrInvalidCiphertext)
			}
		})
	}
}

func TestVault_EncryptIsNondeterministic(t *testing.T) {
	v, _ := NewVault(testSecret)

	c1, _ := v.Encrypt("same-plaintext")
	c2, _ := v.Encrypt("same-plaintext")
	if c1 == c2 {
		t.Error("two encryptions of the same plaintext produced identical ciphertext")
	}
}
