package crypto

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"api key", "bybit-api-key-AbCdEf123456"},
		{"empty string", ""},
		{"unicode", "ключ доступа"},
		{"long value", strings.Repeat("s", 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := Encrypt(tt.plaintext, key)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			if encrypted == tt.plaintext && tt.plaintext != "" {
				t.Error("ciphertext equals plaintext")
			}

			decrypted, err := Decrypt(encrypted, key)
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if decrypted != tt.plaintext {
				t.Errorf("round trip = %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

func TestEncryptRejectsBadKeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33} {
		key := make([]byte, n)
		if _, err := Encrypt("data", key); err != ErrInvalidKeyLength {
			t.Errorf("Encrypt with %d-byte key: err = %v, want %v", n, err, ErrInvalidKeyLength)
		}
		if _, err := Decrypt("data", key); err != ErrInvalidKeyLength {
			t.Errorf("Decrypt with %d-byte key: err = %v, want %v", n, err, ErrInvalidKeyLength)
		}
	}
}

func TestEncryptUniqueNonce(t *testing.T) {
	key, _ := GenerateKey()

	// Один и тот же plaintext каждый раз шифруется с новым nonce
	c1, _ := Encrypt("same-secret", key)
	c2, _ := Encrypt("same-secret", key)
	if c1 == c2 {
		t.Error("two encryptions of one plaintext must differ")
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()

	encrypted, _ := Encrypt("secret", key1)
	if _, err := Decrypt(encrypted, key2); err != ErrDecryptionFailed {
		t.Errorf("Decrypt with wrong key: err = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	key, _ := GenerateKey()
	encrypted, _ := Encrypt("secret", key)

	raw, _ := base64.StdEncoding.DecodeString(encrypted)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := Decrypt(tampered, key); err != ErrDecryptionFailed {
		t.Errorf("Decrypt of tampered data: err = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestDecryptMalformedInput(t *testing.T) {
	key, _ := GenerateKey()

	if _, err := Decrypt("not-base64!!!", key); err != ErrInvalidCiphertext {
		t.Errorf("Decrypt of bad base64: err = %v, want %v", err, ErrInvalidCiphertext)
	}

	short := base64.StdEncoding.EncodeToString([]byte("tiny"))
	if _, err := Decrypt(short, key); err != ErrCiphertextTooShort {
		t.Errorf("Decrypt of short input: err = %v, want %v", err, ErrCiphertextTooShort)
	}
}

func TestKeyStringHelpers(t *testing.T) {
	keyString := strings.Repeat("k", 32)

	encrypted, err := EncryptWithKeyString("api-secret", keyString)
	if err != nil {
		t.Fatalf("EncryptWithKeyString: %v", err)
	}
	decrypted, err := DecryptWithKeyString(encrypted, keyString)
	if err != nil {
		t.Fatalf("DecryptWithKeyString: %v", err)
	}
	if decrypted != "api-secret" {
		t.Errorf("round trip = %q, want %q", decrypted, "api-secret")
	}

	if _, err := EncryptWithKeyString("data", "short"); err != ErrInvalidKeyLength {
		t.Errorf("short string key: err = %v, want %v", err, ErrInvalidKeyLength)
	}
}
