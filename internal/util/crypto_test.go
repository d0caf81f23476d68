package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncryptDecryptWithPassphrase(t *testing.T) {
	passphrase := "backup-passphrase"

	testCases := [][]byte{
		[]byte("Hello World"),
		[]byte(""),
		[]byte("Special!@#$%^&*()"),
		[]byte(strings.Repeat("A", 4096)),
	}

	for _, plaintext := range testCases {
		encrypted, err := EncryptWithPassphrase(passphrase, plaintext)
		if err != nil {
			t.Fatalf("encrypt %q: %v", plaintext, err)
		}

		decrypted, err := DecryptWithPassphrase(passphrase, encrypted)
		if err != nil {
			t.Fatalf("decrypt %q: %v", plaintext, err)
		}

		if !bytes.Equal(decrypted, plaintext) {
			t.Errorf("round trip mismatch: got %q, want %q", decrypted, plaintext)
		}
	}
}

func TestEncryptWithPassphrase_FreshSalt(t *testing.T) {
	plaintext := []byte("same input")

	a, _ := EncryptWithPassphrase("key", plaintext)
	b, _ := EncryptWithPassphrase("key", plaintext)

	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same input should differ (random salt and nonce)")
	}
}

func TestEncryptWithPassphrase_EmptyPassphrase(t *testing.T) {
	_, err := EncryptWithPassphrase("", []byte("data"))
	if err == nil {
		t.Error("empty passphrase error = nil, want error")
	}
}

func TestDecryptWithPassphrase_WrongPassphrase(t *testing.T) {
	encrypted, _ := EncryptWithPassphrase("correct", []byte("data"))

	_, err := DecryptWithPassphrase("wrong", encrypted)
	if err == nil {
		t.Error("wrong passphrase should fail to decrypt")
	}
}

func TestDecryptWithPassphrase_Tampered(t *testing.T) {
	encrypted, _ := EncryptWithPassphrase("key", []byte("data"))
	encrypted[len(encrypted)-1] ^= 0xff

	_, err := DecryptWithPassphrase("key", encrypted)
	if err == nil {
		t.Error("tampered ciphertext should fail to decrypt")
	}
}

func TestDecryptWithPassphrase_InvalidData(t *testing.T) {
	if _, err := DecryptWithPassphrase("key", []byte{1, 2, 3}); err == nil {
		t.Error("short data error = nil, want error")
	}
	if _, err := DecryptWithPassphrase("key", nil); err == nil {
		t.Error("empty data error = nil, want error")
	}
}

func TestRandomString(t *testing.T) {
	str, err := RandomString(32)
	if err != nil {
		t.Fatalf("RandomString(32) error = %v", err)
	}
	if len(str) != 32 {
		t.Errorf("length = %d, want 32", len(str))
	}

	str2, _ := RandomString(32)
	if str == str2 {
		t.Error("two random strings should differ")
	}

	if _, err := RandomString(0); err == nil {
		t.Error("RandomString(0) error = nil, want error")
	}
	if _, err := RandomString(-5); err == nil {
		t.Error("RandomString(-5) error = nil, want error")
	}
}
