package omisegateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	signatureHeader = "Omise-Signature"
	timestampHeader = "Omise-Signature-Timestamp"

	defaultTolerance = 5 * time.Minute
)

// SignatureVerifier проверяет подпись вебхуков Omise:
// hex(HMAC-SHA256(secret, timestamp + "." + body)), при ротации секрета подписей несколько через запятую
type SignatureVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewSignatureVerifier создает проверку подписи. Секрет Omise выдается в base64.
func NewSignatureVerifier(secret string) *SignatureVerifier {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil || len(key) == 0 {
		key = []byte(secret)
	}

	return &SignatureVerifier{
		secret:    key,
		tolerance: defaultTolerance,
		now:       time.Now,
	}
}

// FromHeader возвращает "timestamp,signature[,signature]" или пустую строку
func (v *SignatureVerifier) FromHeader(header http.Header) string {
	ts := header.Get(timestampHeader)
	sig := header.Get(signatureHeader)
	if ts == "" || sig == "" {
		return ""
	}
	return ts + "," + sig
}

// Sign вычисляет подпись тела для метки времени
func (v *SignatureVerifier) Sign(timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify проверяет подпись и свежесть метки времени
func (v *SignatureVerifier) Verify(payload []byte, signature string) error {
	if len(v.secret) == 0 {
		return fmt.Errorf("%w: webhook secret is not configured", ErrSignature)
	}

	parts := strings.Split(signature, ",")
	if len(parts) < 2 {
		return fmt.Errorf("%w: malformed signature", ErrSignature)
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed timestamp", ErrSignature)
	}

	age := v.now().Sub(time.Unix(ts, 0))
	if age > v.tolerance || age < -v.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrSignature)
	}

	expected, _ := hex.DecodeString(v.Sign(strings.TrimSpace(parts[0]), payload))
	for _, candidate := range parts[1:] {
		got, err := hex.DecodeString(strings.TrimSpace(candidate))
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return nil
		}
	}

	return fmt.Errorf("%w: no matching signature", ErrSignature)
}
