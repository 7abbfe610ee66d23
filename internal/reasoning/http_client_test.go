package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lexiqai/interview-engine/internal/envelope"
	"github.com/lexiqai/interview-engine/internal/resilience"
)

func testCodec(t *testing.T) *envelope.Codec {
	t.Helper()
	codec, err := envelope.NewCodec("test-secret")
	if err != nil {
		t.Fatalf("NewCodec() failed: %v", err)
	}
	return codec
}

func fastOptions() Options {
	return Options{
		Timeout: 2 * time.Second,
		Retry: &resilience.RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
		Breaker: resilience.NewCircuitBreaker("reasoning-test", 100, time.Second),
	}
}

// reasoningServer opens each sealed request and answers with reply(req)
func reasoningServer(t *testing.T, codec *envelope.Codec, reply func(Request) string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/reply", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req Request
		if err := codec.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out, err := codec.Marshal(Response{Reply: reply(req)})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Write(out)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClient_Reply(t *testing.T) {
	codec := testCodec(t)
	var got Request
	srv := reasoningServer(t, codec, func(req Request) string {
		got = req
		return "Tell me about yourself."
	})

	client := NewHTTPClient(srv.URL, codec, fastOptions())
	defer client.Close()

	resp, err := client.Reply(context.Background(), Request{
		History:      []Turn{{Role: RoleUser, Content: "hello"}},
		SystemPrompt: "You are an interviewer.",
	})
	if err != nil {
		t.Fatalf("Reply() failed: %v", err)
	}
	if resp.Reply != "Tell me about yourself." {
		t.Errorf("Expected reply 'Tell me about yourself.', got '%s'", resp.Reply)
	}
	if got.SystemPrompt != "You are an interviewer." {
		t.Errorf("Expected system prompt to reach the server, got '%s'", got.SystemPrompt)
	}
	if len(got.History) != 1 || got.History[0].Content != "hello" {
		t.Errorf("Expected history to reach the server, got %+v", got.History)
	}
}

func TestHTTPClient_RequestIsSealed(t *testing.T) {
	codec := testCodec(t)
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		out, _ := codec.Marshal(Response{Reply: "ok"})
		w.Write(out)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, codec, fastOptions())
	if _, err := client.Reply(context.Background(), Request{SystemPrompt: "confidential prompt"}); err != nil {
		t.Fatalf("Reply() failed: %v", err)
	}

	var env envelope.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("Expected an envelope on the wire: %v", err)
	}
	if len(env.Nonce) == 0 || len(env.Ciphertext) == 0 {
		t.Error("Expected nonce and ciphertext to be set")
	}
	var plain map[string]any
	if err := json.Unmarshal(raw, &plain); err == nil {
		if _, ok := plain["systemPrompt"]; ok {
			t.Error("Expected system prompt not to appear in plaintext")
		}
	}
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	codec := testCodec(t)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		out, _ := codec.Marshal(Response{Reply: "third time lucky"})
		w.Write(out)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, codec, fastOptions())
	resp, err := client.Reply(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Reply() failed: %v", err)
	}
	if resp.Reply != "third time lucky" {
		t.Errorf("Expected reply after retries, got '%s'", resp.Reply)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}
}

func TestHTTPClient_DoesNotRetryClientErrors(t *testing.T) {
	codec := testCodec(t)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, codec, fastOptions())
	if _, err := client.Reply(context.Background(), Request{}); err == nil {
		t.Fatal("Expected error for 400 response")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 call, got %d", calls.Load())
	}
}

func TestHTTPClient_TamperedResponse(t *testing.T) {
	codec := testCodec(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env, _ := codec.Seal(Response{Reply: "genuine"})
		env.Ciphertext[0] ^= 0xff
		json.NewEncoder(w).Encode(env)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, codec, fastOptions())
	_, err := client.Reply(context.Background(), Request{})
	if err == nil {
		t.Fatal("Expected error for tampered response")
	}
	if !errors.Is(err, envelope.ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication, got %v", err)
	}
}

func TestHTTPClient_WrongSecret(t *testing.T) {
	server := testCodec(t)
	other, err := envelope.NewCodec("another-secret")
	if err != nil {
		t.Fatalf("NewCodec() failed: %v", err)
	}
	srv := reasoningServer(t, server, func(Request) string { return "unreachable" })

	client := NewHTTPClient(srv.URL, other, fastOptions())
	if _, err := client.Reply(context.Background(), Request{}); err == nil {
		t.Error("Expected error when secrets differ")
	}
}

func TestHTTPClient_EmptyReply(t *testing.T) {
	codec := testCodec(t)
	srv := reasoningServer(t, codec, func(Request) string { return "   " })

	client := NewHTTPClient(srv.URL, codec, fastOptions())
	_, err := client.Reply(context.Background(), Request{})
	if !errors.Is(err, ErrEmptyReply) {
		t.Errorf("Expected ErrEmptyReply, got %v", err)
	}
}

func TestHTTPClient_HealthCheck(t *testing.T) {
	codec := testCodec(t)
	srv := reasoningServer(t, codec, func(Request) string { return "" })

	client := NewHTTPClient(srv.URL+"/", codec, fastOptions())
	healthy, err := client.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck() failed: %v", err)
	}
	if !healthy {
		t.Error("Expected service to be healthy")
	}
}
