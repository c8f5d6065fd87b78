package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootHasSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"talk", "send"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("missing subcommand %s: %v", name, err)
		}
	}
}

func TestVersionFlag(t *testing.T) {
	out, err := runCommand(t, "--version")
	if err != nil {
		t.Fatalf("--version: %v", err)
	}
	if !strings.Contains(out, Version) {
		t.Fatalf("version output %q", out)
	}
}

func TestSendRequiresFile(t *testing.T) {
	if _, err := runCommand(t, "send", "--verbose"); err == nil {
		t.Fatal("expected missing --file error")
	}
}

func TestSendRejectsBadEndpoint(t *testing.T) {
	dir := t.TempDir()
	_, err := runCommand(t, "send", "--verbose",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--endpoint", "ftp://example.com",
		"--file", filepath.Join(dir, "clip.webm"))
	if err == nil {
		t.Fatal("expected endpoint validation error")
	}
}

func TestSendWritesReply(t *testing.T) {
	var (
		mu       sync.Mutex
		gotAudio []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process_voice_agent" {
			http.NotFound(w, r)
			return
		}
		file, _, err := r.FormFile("audio")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		mu.Lock()
		gotAudio = data
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"audio_data":[82,73,70,70],"transcription":"hello","text":"hi there"}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	input := filepath.Join(dir, "clip.webm")
	if err := os.WriteFile(input, []byte("recorded-opus"), 0o644); err != nil {
		t.Fatal(err)
	}
	output := filepath.Join(dir, "out", "reply.wav")

	out, err := runCommand(t, "send", "--verbose",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--endpoint", srv.URL+"/process_voice_agent",
		"--file", input,
		"--out", output)
	if err != nil {
		t.Fatalf("send: %v\n%s", err, out)
	}

	mu.Lock()
	received := string(gotAudio)
	mu.Unlock()
	if received != "recorded-opus" {
		t.Fatalf("server received %q", received)
	}
	reply, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("reply not written: %v", err)
	}
	if string(reply) != "RIFF" {
		t.Fatalf("reply = %q", reply)
	}
	for _, want := range []string{"user: hello", "assistant: hi there", "latency"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSendReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"transcribe failed"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	input := filepath.Join(dir, "clip.webm")
	if err := os.WriteFile(input, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "send", "--verbose",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--endpoint", srv.URL+"/process_voice_agent",
		"--file", input,
		"--out", filepath.Join(dir, "reply.wav"))
	if err == nil {
		t.Fatal("expected error for failed upload")
	}
	if !strings.Contains(out, "error: Processing failed") {
		t.Fatalf("output missing failure line:\n%s", out)
	}
}

func TestSendFailsWhenReplyCannotBeSaved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"audio_data":[1,2,3],"transcription":"hello","text":"hi"}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	input := filepath.Join(dir, "clip.webm")
	if err := os.WriteFile(input, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// a regular file where the output directory should be
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "send", "--verbose",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--endpoint", srv.URL+"/process_voice_agent",
		"--file", input,
		"--out", filepath.Join(blocker, "reply.wav"))
	if err == nil {
		t.Fatalf("expected error when the reply cannot be written:\n%s", out)
	}
	if !strings.Contains(err.Error(), "Failed to play response") {
		t.Fatalf("error should carry the playback failure, got %v", err)
	}
}
