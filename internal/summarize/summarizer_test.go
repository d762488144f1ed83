package summarize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllama_InterpretAndHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			var req generateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode request: %v", err)
				return
			}
			if req.Model != "llama3.1" || req.Format != "json" || req.Stream {
				t.Errorf("unexpected request %+v", req)
			}
			if !strings.Contains(req.Prompt, "RWY 16L CLSD") {
				t.Errorf("prompt does not carry the notice text")
			}
			json.NewEncoder(w).Encode(generateResponse{
				Response: `{"notamShortDescription":"Runway 16L closed","notamDescription":"d","category":"Airport maintenance","impactedRole":"Pilot, ATC"}`,
				Done:     true,
			})
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"llama3.1:latest"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	completer, err := NewCompleter("ollama", server.URL, "", 0)
	if err != nil {
		t.Fatalf("NewCompleter() error = %v", err)
	}
	s := New(completer, "llama3.1", "")

	in, err := s.Interpret(context.Background(), "RWY 16L CLSD")
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if in.ShortDescription != "Runway 16L closed" || in.ImpactedRoles != "Pilot, ATC" {
		t.Errorf("Interpret() = %+v", in)
	}

	if err := s.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}
	if err := completer.Health(context.Background(), "mistral"); err == nil {
		t.Error("Health() should fail for a model that is not pulled")
	}
}

func TestOpenAI_Brief(t *testing.T) {
	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "brief-model" {
			t.Errorf("model = %q, want brief-model", req.Model)
		}
		if req.ResponseFormat != nil {
			t.Error("briefing should not request JSON output")
		}
		gotPrompt = req.Messages[0].Content
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Here is your briefing\n- RWY closed  "}}]}`))
	}))
	defer server.Close()

	completer, err := NewCompleter("openai", server.URL, "sk-test", 0)
	if err != nil {
		t.Fatalf("NewCompleter() error = %v", err)
	}
	s := New(completer, "m", "brief-model")

	out, err := s.Brief(context.Background(), "", []BriefingLine{
		{Location: "KSEA", Summary: "Runway 16L closed"},
		{Location: "KPDX", Summary: "Taxiway B lights out"},
	})
	if err != nil {
		t.Fatalf("Brief() error = %v", err)
	}
	if out != "Here is your briefing\n- RWY closed" {
		t.Errorf("Brief() = %q", out)
	}
	if !strings.Contains(gotPrompt, "flight dispatcher") || !strings.Contains(gotPrompt, "Airport: KPDX. NOTAM: Taxiway B lights out") {
		t.Errorf("prompt = %q", gotPrompt)
	}

	if _, err := s.Brief(context.Background(), "pilot", nil); err == nil {
		t.Error("Brief() with no notices should fail")
	}
}

func TestInterpret_RejectsBadAnswers(t *testing.T) {
	tests := []struct {
		name   string
		answer string
	}{
		{"not json", "I cannot help with that"},
		{"missing summary", `{"notamDescription":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(staticCompleter(tt.answer), "m", "")
			if _, err := s.Interpret(context.Background(), "text"); err == nil {
				t.Error("Interpret() error = nil, want failure")
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	in := "```json\n{\"a\":1}\n```"
	if got := extractJSON(in); got != `{"a":1}` {
		t.Errorf("extractJSON() = %q", got)
	}
}

func TestNewCompleter_UnknownProvider(t *testing.T) {
	if _, err := NewCompleter("bard", "", "", 0); err == nil {
		t.Error("NewCompleter() should reject unknown providers")
	}
}

type staticCompleter string

func (s staticCompleter) Complete(context.Context, string, string, bool) (string, error) {
	return string(s), nil
}

func (s staticCompleter) Health(context.Context, string) error { return nil }
