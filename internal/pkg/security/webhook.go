package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook deliveries older than this are rejected to block replays.
const webhookTolerance = 5 * time.Minute

// VerifyWebhookSignature checks a gateway webhook delivery against the shared
// secret. The signed payload is "<id>.<timestamp>.<body>"; the signature
// header may carry several space-separated "v1,<base64>" candidates of which
// one has to match.
func VerifyWebhookSignature(secret, webhookID, timestamp, signatureHeader string, body []byte) error {
	if secret == "" {
		return errors.New("secret is required for webhook verification")
	}
	if webhookID == "" || timestamp == "" || signatureHeader == "" {
		return errors.New("missing webhook signature headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errors.New("invalid webhook timestamp")
	}
	age := time.Since(time.Unix(ts, 0))
	if age > webhookTolerance || age < -webhookTolerance {
		return errors.New("webhook timestamp outside tolerance")
	}

	key, err := decodeWebhookSecret(secret)
	if err != nil {
		return err
	}

	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", webhookID, timestamp)
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, candidate := range strings.Fields(signatureHeader) {
		// Candidates are versioned as "v1,<base64 signature>"
		parts := strings.SplitN(candidate, ",", 2)
		if len(parts) != 2 || parts[0] != "v1" {
			continue
		}
		sig, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			continue
		}
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return errors.New("invalid webhook signature")
}

// decodeWebhookSecret strips the optional "whsec_" prefix and decodes the key
func decodeWebhookSecret(secret string) ([]byte, error) {
	raw := strings.TrimPrefix(secret, "whsec_")
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		// Secrets handed out as plain strings are used as-is
		return []byte(raw), nil
	}
	return key, nil
}
