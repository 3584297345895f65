package resolver

import (
	"context"
	"testing"
	"time"
)

func TestMyIPCachesFailure(t *testing.T) {
	r := NewWithServer("127.0.0.1:1", "myip.opendns.com")

	_, err1 := r.MyIP(context.Background(), 200*time.Millisecond)
	if err1 == nil {
		t.Fatal("expected an error resolving against an unreachable DNS server")
	}
	_, err2 := r.MyIP(context.Background(), 200*time.Millisecond)
	if err2 == nil {
		t.Fatal("expected the cached error on the second call")
	}
	if err1.Error() != err2.Error() {
		t.Fatalf("second call should return the cached error, got %v vs %v", err2, err1)
	}
}

func TestNewUsesOpenDNSDefaults(t *testing.T) {
	r := New()
	if r.server != openDNSServer || r.host != myIPHost {
		t.Fatalf("New() defaults = %q %q, want %q %q", r.server, r.host, openDNSServer, myIPHost)
	}
}
