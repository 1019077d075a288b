package config

import (
	"os"
	"path/filepath"
	"testing"
)

const minimalYAML = `
server:
  listen_udp: "0.0.0.0:1700"
router:
  uri: "router.example.com:443"
  pubkey: "deadbeef"
poc:
  uri: "poc.example.com:443"
  pubkey: "cafef00d"
keypair:
  path: "/etc/gatewayd/keypair"
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatewayd.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, minimalYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Router.Queue != defaultRouterQueue {
		t.Fatalf("router.queue = %d, want default %d", cfg.Router.Queue, defaultRouterQueue)
	}
	if cfg.Region.Default != defaultRegion {
		t.Fatalf("region.default = %q, want default %q", cfg.Region.Default, defaultRegion)
	}
	if cfg.Log.Level != defaultLogLevel {
		t.Fatalf("log.level = %q, want default %q", cfg.Log.Level, defaultLogLevel)
	}
}

func TestLoadRejectsMissingRequiredField(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_udp: "0.0.0.0:1700"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded with no router.uri or poc.uri or keypair.path")
	}
}

func TestLoadRejectsUnknownRegion(t *testing.T) {
	path := writeConfig(t, minimalYAML+"region:\n  default: \"XX000\"\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded with an unknown region name")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	path := writeConfig(t, minimalYAML)

	t.Setenv("GATEWAYD_ROUTER_URI", "override.example.com:443")
	t.Setenv("GATEWAYD_REGION", "US915")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Router.URI != "override.example.com:443" {
		t.Fatalf("router.uri = %q, want env override", cfg.Router.URI)
	}
	if cfg.Region.Default != "US915" {
		t.Fatalf("region.default = %q, want env override", cfg.Region.Default)
	}
}

func TestLoadRejectsUnparseablePubKey(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_udp: "0.0.0.0:1700"
router:
  uri: "router.example.com:443"
  pubkey: "not-hex-at-all"
poc:
  uri: "poc.example.com:443"
keypair:
  path: "/etc/gatewayd/keypair"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded with a non-hex router.pubkey")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load succeeded against a nonexistent file")
	}
}
