package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSignMatchesHMAC(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"payment.confirmed"}`)
	ts := int64(1760000000)

	mac := hmac.New(sha256.New, []byte("whsec_test"))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, body)))
	want := hex.EncodeToString(mac.Sum(nil))

	if got := Sign("whsec_test", ts, body); got != want {
		t.Errorf("Sign() = %s, want %s", got, want)
	}
	if got := FormatSignature("whsec_test", ts, body); got != fmt.Sprintf("t=%d,v1=%s", ts, want) {
		t.Errorf("FormatSignature() = %s", got)
	}
}

func TestVerify(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	now := time.Unix(1760000000, 0)
	header := FormatSignature("secret", now.Unix(), body)

	tests := []struct {
		name    string
		header  string
		body    []byte
		secret  string
		now     time.Time
		wantErr bool
	}{
		{"valid", header, body, "secret", now, false},
		{"wrong secret", header, body, "other", now, true},
		{"tampered body", header, []byte(`{"hello":"mars"}`), "secret", now, true},
		{"stale timestamp", header, body, "secret", now.Add(10 * time.Minute), true},
		{"malformed", "v1=deadbeef", body, "secret", now, true},
		{"bad timestamp", "t=abc,v1=deadbeef", body, "secret", now, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.header, tt.body, tt.secret, 5*time.Minute, tt.now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}
}
