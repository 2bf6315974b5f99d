package common

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chains.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write manifest: %v", err)
	}
	return path
}

func TestLoadChainStreams(t *testing.T) {
	path := writeManifest(t, `
chains:
  - currency: SUI
    stream_url: wss://stream.example.com/sui
  - currency: XTZ
    stream_url: wss://stream.example.com/tezos
`)

	streams, err := LoadChainStreams(path)
	if err != nil {
		t.Fatalf("LoadChainStreams failed: %v", err)
	}
	if len(streams) != 2 {
		t.Fatalf("Expected 2 streams, got %d", len(streams))
	}
	if streams[0].Currency != "SUI" || streams[0].StreamURL != "wss://stream.example.com/sui" {
		t.Errorf("Unexpected first stream: %+v", streams[0])
	}
}

func TestLoadChainConfig_Validation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing currency", "chains:\n  - stream_url: wss://x\n"},
		{"missing stream_url", "chains:\n  - currency: SUI\n"},
		{"malformed yaml", "chains: [\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeManifest(t, tc.content)
			if _, err := LoadChainConfig(path); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}

	if _, err := LoadChainConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
