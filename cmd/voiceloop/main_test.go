package main

import "testing"

func TestBuildClientMissingCredentials(t *testing.T) {
	tests := []struct {
		name        string
		apiKey      string
		assistantID string
	}{
		{"missing api key", "", "asst_123"},
		{"missing assistant id", "test-key", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := buildClient(tt.apiKey, tt.assistantID, "")
			if err == nil {
				t.Fatal("expected an error")
			}
			// The interface must be exactly nil, not a typed nil, or the
			// controller would not enter degraded mode.
			if client != nil {
				t.Errorf("expected nil client, got %T", client)
			}
		})
	}
}

func TestBuildClient(t *testing.T) {
	client, err := buildClient("test-key", "asst_123", "ws://127.0.0.1:1/v1/calls")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if client == nil {
		t.Fatal("expected a client")
	}
	client.Close()
}
