package nsfw

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func detector(t *testing.T, resp apiResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict/url" {
			t.Errorf("Expected /predict/url, got %s", r.URL.Path)
		}
		var body struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if body.URL != "https://cdn.example.com/a.png" {
			t.Errorf("unexpected url %q", body.URL)
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClient_DetectFromURL_Safe(t *testing.T) {
	server := detector(t, apiResponse{IsNSFW: false, NSFWScore: 0.05, NormalScore: 0.95, Label: "normal", Confidence: 0.95})
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Threshold: 0.5})
	result, err := client.DetectFromURL(context.Background(), "https://cdn.example.com/a.png")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !result.IsSafe() {
		t.Error("Expected image to be safe")
	}
}

func TestClient_DetectFromURL_Unsafe(t *testing.T) {
	server := detector(t, apiResponse{IsNSFW: true, NSFWScore: 0.92, NormalScore: 0.08, Label: "nsfw", Confidence: 0.92})
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/", Threshold: 0.5})
	result, err := client.DetectFromURL(context.Background(), "https://cdn.example.com/a.png")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.IsSafe() {
		t.Error("Expected image to be NSFW")
	}
	if result.Label != "nsfw" {
		t.Errorf("Expected label nsfw, got %s", result.Label)
	}
}

func TestClient_DetectFromURL_Threshold(t *testing.T) {
	server := detector(t, apiResponse{IsNSFW: false, NSFWScore: 0.4, Label: "normal"})
	defer server.Close()

	strict := NewClient(Config{BaseURL: server.URL, Threshold: 0.3})
	result, err := strict.DetectFromURL(context.Background(), "https://cdn.example.com/a.png")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !result.IsNSFW {
		t.Error("Expected score above threshold to be NSFW")
	}
}

func TestClient_DetectFromURL_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cannot fetch image", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	if _, err := client.DetectFromURL(context.Background(), "https://cdn.example.com/a.png"); err == nil {
		t.Fatal("Expected error for non-200 status")
	}
}

func TestClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("Expected /health, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"status": "healthy"}`))
	}))
	defer server.Close()

	if err := NewClient(Config{BaseURL: server.URL}).Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.BaseURL != "http://localhost:8080" {
		t.Errorf("Expected BaseURL http://localhost:8080, got %s", config.BaseURL)
	}
	if config.Threshold != 0.5 {
		t.Errorf("Expected Threshold 0.5, got %f", config.Threshold)
	}
}
