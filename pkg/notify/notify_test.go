package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/sharehunt/shares-sniper/pkg/types"
)

func TestTokenAdmittedDeliversPayload(t *testing.T) {
	received := make(chan admissionPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload admissionPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		received <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := New(server.URL, zap.NewNop())
	p.TokenAdmitted(context.Background(), &types.Candidate{
		AddressChecksum: "0xAbCd",
		CreatorHandle:   "creator",
		FollowerCount:   15000,
	})

	select {
	case payload := <-received:
		if payload.Event != "token_admitted" {
			t.Errorf("unexpected event name %q", payload.Event)
		}
		if payload.TokenAddress != "0xAbCd" || payload.FollowerCount != 15000 {
			t.Errorf("payload fields lost: %+v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never arrived")
	}
}

func TestEmptyURLDisablesDelivery(t *testing.T) {
	p := New("", zap.NewNop())
	// Must not panic or block.
	p.TokenAdmitted(context.Background(), &types.Candidate{AddressChecksum: "0xAbCd"})
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	p := New(server.URL, zap.NewNop())
	p.TokenAdmitted(context.Background(), &types.Candidate{AddressChecksum: "0xAbCd"})
	time.Sleep(50 * time.Millisecond) // let the goroutine run; nothing to assert beyond no panic
}
