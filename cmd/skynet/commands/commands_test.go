package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/snappy-loop/skynet/internal/balancer"
	"github.com/snappy-loop/skynet/internal/chat"
	"github.com/snappy-loop/skynet/internal/models"
)

// setupTestEnv isolates the command from the host configuration.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, key := range []string{"GEMINI_API_KEY", "DATABASE_URL", "KAFKA_BROKERS", "S3_BUCKET", "SKYNET_CONFIG", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	t.Setenv("NARRATION_DIR", dir)
	t.Setenv("NARRATION_PACED", "false")
	configPath = ""
	return dir
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExamples(t *testing.T) {
	setupTestEnv(t)
	out, err := runCmd(t, "examples")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != len(balancer.Examples) || lines[0] != balancer.Examples[0] {
		t.Errorf("examples output = %q", out)
	}
}

func TestBalance_EmptyEquation(t *testing.T) {
	setupTestEnv(t)
	out, err := runCmd(t, "balance", "   ")
	var validationErr *balancer.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(out, balancer.EmptyEquationMessage) {
		t.Errorf("output = %q", out)
	}
}

func TestBalance_RequiresArgs(t *testing.T) {
	setupTestEnv(t)
	if _, err := runCmd(t, "balance"); err == nil {
		t.Error("expected argument error")
	}
}

func TestSpeak(t *testing.T) {
	dir := setupTestEnv(t)
	payload := filepath.Join(t.TempDir(), "payload.b64")
	if err := os.WriteFile(payload, []byte(base64.StdEncoding.EncodeToString([]byte{1, 0, 2, 0})+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "speak", "--file", payload)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Playing 2 samples") {
		t.Errorf("output = %q", out)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*.wav"))
	if len(files) != 1 {
		t.Errorf("wav files = %v", files)
	}
}

func TestSpeak_OddPayload(t *testing.T) {
	setupTestEnv(t)
	payload := filepath.Join(t.TempDir(), "odd.b64")
	os.WriteFile(payload, []byte(base64.StdEncoding.EncodeToString([]byte{1, 2, 3})), 0o644)
	if _, err := runCmd(t, "speak", "--file", payload); err == nil {
		t.Error("expected decode error")
	}
}

func TestHashKey(t *testing.T) {
	setupTestEnv(t)
	out, err := runCmd(t, "hash-key", "desk")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "$2a$") {
		t.Errorf("hash = %q", out)
	}
}

func TestEvents_RequiresBrokers(t *testing.T) {
	setupTestEnv(t)
	if _, err := runCmd(t, "events"); err == nil || !strings.Contains(err.Error(), "KAFKA_BROKERS") {
		t.Errorf("events without brokers = %v", err)
	}
}

func TestFormatEvent(t *testing.T) {
	var buf bytes.Buffer
	e := &models.BalanceEvent{
		RequestID:          uuid.New(),
		Equation:           "C5H12 + O2 -> CO2 + H2O",
		NeutralizationType: models.NeutralizationImpossible,
		Cached:             true,
		CompletedAt:        time.Now(),
	}
	got := formatEvent(&buf, e)
	for _, want := range []string{"IMPOSSIBLE", "C5H12 + O2 -> CO2 + H2O => -", "(cache)"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatEvent() = %q, missing %q", got, want)
		}
	}
}

func TestReplyPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &replyPrinter{w: &buf}
	msgs := []models.ChatMessage{{Role: models.RoleUser, Content: "hola"}, {Role: models.RoleModel, Content: ""}}
	p.update(updateWith("placeholder", msgs, ""))
	p.update(updateWith("fragment", msgs, "Ho"))
	p.update(updateWith("fragment", msgs, "Hola."))
	p.update(updateWith("commit", msgs, "Hola."))
	if !strings.HasSuffix(buf.String(), "Hola.\n") || strings.Count(buf.String(), "Ho") != 1 {
		t.Errorf("printed %q", buf.String())
	}
}

func updateWith(kind string, msgs []models.ChatMessage, reply string) chat.Update {
	transcript := append([]models.ChatMessage(nil), msgs...)
	transcript[len(transcript)-1].Content = reply
	return chat.Update{Kind: kind, Open: true, Transcript: transcript}
}
