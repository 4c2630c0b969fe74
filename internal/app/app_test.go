package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/snappy-loop/skynet/internal/audio"
	"github.com/snappy-loop/skynet/internal/config"
	"github.com/snappy-loop/skynet/internal/llm"
)

func TestNew_Unconfigured(t *testing.T) {
	cfg := &config.Config{NarrationDir: t.TempDir()}
	var out bytes.Buffer
	a, err := New(context.Background(), cfg, Options{ExtraDevices: []audio.Device{&audio.WriterDevice{W: &out}}})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.DB != nil || a.producer != nil {
		t.Error("optional backends should stay disabled")
	}
	if a.Balancer == nil || a.Chat == nil || a.Narrator == nil {
		t.Fatal("orchestrators not wired")
	}
	if extra := a.NewBalancer(); extra == a.Balancer || len(a.balancers) != 2 {
		t.Errorf("extra balancers must be separate and drained on Close, got %d", len(a.balancers))
	}

	// Without an API key every model call fails fast.
	if _, err := a.Balancer.Balance(context.Background(), "H2 + O2 -> H2O"); err == nil {
		t.Error("expected balance error without API key")
	}
	if err := a.Chat.Open(context.Background()); !errors.Is(err, llm.ErrNotConfigured) {
		t.Errorf("Chat.Open() = %v", err)
	}

	pb, err := a.Player.Play(context.Background(), base64.StdEncoding.EncodeToString([]byte{1, 0, 2, 0}))
	if err != nil {
		t.Fatal(err)
	}
	if err := pb.Wait(); err != nil {
		t.Fatal(err)
	}
	if out.Len() == 0 || a.Files.Last() == "" {
		t.Error("narration should reach every device")
	}
}
