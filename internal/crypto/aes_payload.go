package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"
)

// payloadKeyMaterial is not a secret. It exists for format stability and
// to deter casual inspection, per spec.md §9 — a reimplementation must
// match it bit-for-bit, not strengthen it, or previously-compiled
// binaries stop loading.
const payloadKeyMaterial = "Kernel32.lib"

// payloadKeyAndIV reproduces original_source/src/nvgt_config.h's
// angelscript_bytecode_encrypt/_decrypt key and IV derivation exactly:
// key is the first 16 bytes of SHA-256(payloadKeyMaterial); the IV is
// built by permuting odd-indexed bytes of the full 32-byte digest.
func payloadKeyAndIV() (key, iv []byte) {
	digest := sha256.Sum256([]byte(payloadKeyMaterial))
	key = append([]byte(nil), digest[:16]...)
	iv = make([]byte, 16)
	for i := 0; i < 16; i++ {
		iv[i] = digest[i*2+1] ^ byte(31+i*4)
	}
	return key, iv
}

// pkcsPad appends spec.md §4.8's padding: r = 16 - (len % 16), r = 16 if
// that's 0, with r copies of the byte value r.
func pkcsPad(data []byte) []byte {
	r := 16 - (len(data) % 16)
	if r == 0 {
		r = 16
	}
	pad := bytes.Repeat([]byte{byte(r)}, r)
	return append(data, pad...)
}

func pkcsUnpad(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%16 != 0 {
		return nil, errors.New("crypto: ciphertext is not block-aligned")
	}
	r := int(data[len(data)-1])
	if r <= 0 || r > 16 || r > len(data) {
		return nil, errors.New("crypto: invalid padding")
	}
	return data[:len(data)-r], nil
}

// EncryptBytecode pads plaintext per spec.md §4.8 and encrypts it with
// AES-128-CBC under the fixed key/IV. Ciphertext length is always a
// multiple of 16 and strictly greater than len(plaintext).
func EncryptBytecode(plaintext []byte) ([]byte, error) {
	key, iv := payloadKeyAndIV()
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pkcsPad(append([]byte(nil), plaintext...))
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// DecryptBytecode reverses EncryptBytecode.
func DecryptBytecode(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%16 != 0 {
		return nil, errors.New("crypto: ciphertext is not block-aligned")
	}
	key, iv := payloadKeyAndIV()
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return pkcsUnpad(out)
}
