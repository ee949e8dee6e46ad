package fetcher

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ProtectedParam is the image URL query parameter marking a protected payload.
const ProtectedParam = "cpx"

const (
	protectedFlag    = 1
	protectedHeader  = 5
	protectedHeadLen = 20496
	ivOffset         = 60
)

// protectedKey returns the cpx value of rawURL, if any.
func protectedKey(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	cpx := parsed.Query().Get(ProtectedParam)
	return cpx, cpx != ""
}

// DecodeProtected restores the image bytes of a cpx-protected payload.
//
// The payload is a flag byte, a big-endian content length, the content and
// the AES key. Only the first protectedHeadLen bytes of the content are
// AES-CBC encrypted; the IV sits inside the base64 cpx value. Payloads that
// already look like an image are returned unchanged.
func DecodeProtected(data []byte, cpx string) ([]byte, error) {
	if len(data) == 0 || strings.HasPrefix(http.DetectContentType(data), "image/") {
		return data, nil
	}
	if data[0] != protectedFlag {
		return nil, fmt.Errorf("unexpected payload flag %d", data[0])
	}
	if len(data) < protectedHeader {
		return nil, errors.New("payload header truncated")
	}
	size := int(binary.BigEndian.Uint32(data[1:protectedHeader]))
	if size+protectedHeader > len(data) {
		return data, nil
	}
	raw, err := base64.StdEncoding.DecodeString(cpx)
	if err != nil {
		return nil, fmt.Errorf("decode cpx: %w", err)
	}
	if len(raw) < ivOffset+aes.BlockSize {
		return nil, fmt.Errorf("cpx too short: %d bytes", len(raw))
	}
	iv := raw[ivOffset : ivOffset+aes.BlockSize]
	key := data[protectedHeader+size:]
	content := data[protectedHeader : protectedHeader+size]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("payload key: %w", err)
	}
	head, tail := content, []byte(nil)
	if len(content) >= protectedHeadLen {
		head, tail = content[:protectedHeadLen], content[protectedHeadLen:]
	}
	if len(head) == 0 || len(head)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("encrypted length %d is not a multiple of the block size", len(head))
	}
	plain := make([]byte, len(head))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, head)
	plain, err = unpad(plain)
	if err != nil {
		return nil, err
	}
	return append(plain, tail...), nil
}

// unpad strips PKCS#7 padding.
func unpad(b []byte) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, fmt.Errorf("invalid padding length %d", n)
	}
	return b[:len(b)-n], nil
}
