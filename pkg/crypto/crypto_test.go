package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sanchay-service/sanchay_service/pkg/errors"
)

func TestCipher_RoundTrip(t *testing.T) {
	c := NewCipher("test-secret")

	for _, plaintext := range []string{"12345678901234", "x", "a longer value with spaces"} {
		blob, err := c.Encrypt(plaintext)
		assert.NoError(t, err)
		assert.Contains(t, blob, ":")

		got, err := c.Decrypt(blob)
		assert.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestCipher_RandomIV(t *testing.T) {
	c := NewCipher("test-secret")

	blob1, err := c.Encrypt("12345678901234")
	assert.NoError(t, err)
	blob2, err := c.Encrypt("12345678901234")
	assert.NoError(t, err)
	assert.NotEqual(t, blob1, blob2, "same plaintext must not produce the same blob")
}

func TestCipher_Decrypt_MalformedBlobs(t *testing.T) {
	c := NewCipher("test-secret")

	blobs := []string{
		"",
		"no-separator",
		"one:two:three",
		"zzzz:abcd",                        // iv is not hex
		"00112233445566778899aabbccddeeff", // missing ciphertext part
		"00112233445566778899aabbccddeeff:zz",
		"0011:00112233445566778899aabbccddeeff", // iv too short
	}
	for _, blob := range blobs {
		_, err := c.Decrypt(blob)
		assert.True(t, errors.IsType(err, errors.ErrorTypeDataCorruption), "blob %q", blob)
	}
}

func TestCipher_Decrypt_WrongKey(t *testing.T) {
	blob, err := NewCipher("key-one").Encrypt("12345678901234")
	assert.NoError(t, err)

	got, err := NewCipher("key-two").Decrypt(blob)
	if err == nil {
		// CBC with a wrong key usually breaks the padding; if it happens to
		// survive, the plaintext must still not match
		assert.NotEqual(t, "12345678901234", got)
	}
}

func TestHashFingerprint(t *testing.T) {
	a := HashFingerprint("12345678901234")
	b := HashFingerprint("12345678901234")
	c := HashFingerprint("12345678901235")

	assert.Equal(t, a, b, "fingerprints must be stable")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestHashPIN_Validate(t *testing.T) {
	hash, err := HashPIN("4821")
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"))

	assert.True(t, ValidatePIN("4821", hash))
	assert.False(t, ValidatePIN("0000", hash))
}

func TestGenerateOTPReference(t *testing.T) {
	ref1, err := GenerateOTPReference()
	assert.NoError(t, err)
	ref2, err := GenerateOTPReference()
	assert.NoError(t, err)

	assert.Len(t, ref1, 32)
	assert.NotEqual(t, ref1, ref2)
}
