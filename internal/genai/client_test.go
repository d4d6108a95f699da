package genai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"policyforge/internal/domain"
	"policyforge/internal/domain/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGenerateContentSendsBearerAndParsesReply(t *testing.T) {
	var gotAuth string
	var gotReq GenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate-content" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(GenerateResponse{
			Content:        "generated section text",
			Summary:        "generated section...",
			IsChatResponse: false,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", testLogger())
	resp, err := client.GenerateContent(context.Background(), GenerateRequest{
		DraftID: "d1", NodeID: "t1", NodeTitle: "Introduction",
		NodeType: models.NodeTypeTopic, Prompt: "draft the introduction",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("missing bearer token, got %q", gotAuth)
	}
	if gotReq.NodeID != "t1" || gotReq.Prompt != "draft the introduction" {
		t.Errorf("request not forwarded: %+v", gotReq)
	}
	if resp.Content != "generated section text" || resp.IsChatResponse {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestServerErrorsClassifyAsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testLogger())
	_, err := client.ValidateDescription(context.Background(), ValidateRequest{Description: "x"})
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("expected unavailable, got %v", err)
	}
}

func TestClientErrorsAreNotUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testLogger())
	_, err := client.GenerateTOC(context.Background(), TOCRequest{Title: "x"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, domain.ErrUnavailable) {
		t.Error("a 4xx must not classify as service unavailability")
	}
}

func TestInterpretTOCChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.TOCOperation{
			Action:               models.ActionRenameTopic,
			Parameters:           map[string]any{"topic_id": "t1", "new_name": "Overview"},
			Interpretation:       "Rename Introduction to Overview.",
			RequiresConfirmation: true,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testLogger())
	op, err := client.InterpretTOCChat(context.Background(), TOCChatRequest{DraftID: "d1", Message: "rename it"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Action != models.ActionRenameTopic || !op.RequiresConfirmation {
		t.Errorf("unexpected operation: %+v", op)
	}
}
