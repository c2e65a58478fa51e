package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"testing"
	"time"
)

func signWebhook(secret []byte, id, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%s.%s.", id, timestamp)
	mac.Write(body)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("shared-key"))
	body := []byte(`{"payment_id":"pay-001","status":"Paid"}`)
	id := "msg-123"
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := signWebhook([]byte("shared-key"), id, ts, body)

	if err := VerifyWebhookSignature("whsec_"+secret, id, ts, sig, body); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	// The prefix is optional
	if err := VerifyWebhookSignature(secret, id, ts, sig, body); err != nil {
		t.Fatalf("valid signature without prefix rejected: %v", err)
	}
}

func TestVerifyWebhookSignatureMultipleCandidates(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("shared-key"))
	body := []byte(`{}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	good := signWebhook([]byte("shared-key"), "msg-1", ts, body)
	header := "v1,Zm9yZ2Vk " + good

	if err := VerifyWebhookSignature(secret, "msg-1", ts, header, body); err != nil {
		t.Fatalf("matching candidate not accepted: %v", err)
	}
}

func TestVerifyWebhookSignatureRejections(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("shared-key"))
	body := []byte(`{"payment_id":"pay-001"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := signWebhook([]byte("shared-key"), "msg-123", ts, body)

	tests := []struct {
		name      string
		secret    string
		id        string
		timestamp string
		signature string
		body      []byte
	}{
		{"empty secret", "", "msg-123", ts, sig, body},
		{"missing headers", secret, "", "", "", body},
		{"tampered body", secret, "msg-123", ts, sig, []byte(`{"payment_id":"pay-002"}`)},
		{"wrong id", secret, "msg-456", ts, sig, body},
		{"garbage timestamp", secret, "msg-123", "not-a-number", sig, body},
		{"stale timestamp", secret, "msg-123",
			strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10), sig, body},
		{"unversioned signature", secret, "msg-123", ts, "v2,abc", body},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifyWebhookSignature(tt.secret, tt.id, tt.timestamp, tt.signature, tt.body); err == nil {
				t.Error("expected verification to fail")
			}
		})
	}
}
