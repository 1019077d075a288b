package keypair

import (
	"path/filepath"
	"testing"

	"github.com/lorawan-server/gatewayd/internal/wire"
)

func TestLoadGeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.key")

	kp1, err := Load(path)
	if err != nil {
		t.Fatalf("Load (generate): %v", err)
	}
	kp2, err := Load(path)
	if err != nil {
		t.Fatalf("Load (reload): %v", err)
	}
	if string(kp1.Public) != string(kp2.Public) {
		t.Fatal("reloaded keypair has a different public key")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	kp, err := Load(filepath.Join(dir, "gateway.key"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	msg := &wire.PacketRouterRegisterV1{Gateway: kp.Public, Timestamp: 1234}
	if err := Sign(kp, msg); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	ok, err := Verify(kp.Public, msg)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("Verify() = false, want true")
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	dir := t.TempDir()
	kp, err := Load(filepath.Join(dir, "gateway.key"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	msg := &wire.PacketRouterRegisterV1{Gateway: kp.Public, Timestamp: 1234}
	if err := Sign(kp, msg); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	msg.Timestamp = 5678
	ok, err := Verify(kp.Public, msg)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("Verify() = true after tampering, want false")
	}
}
