package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	tests := []struct {
		cfg     Config
		wantErr bool
	}{
		{cfg: Config{Env: "prod"}},
		{cfg: Config{Env: "local", Level: "debug"}},
		{cfg: Config{}},
		{cfg: Config{Env: "staging"}, wantErr: true},
		{cfg: Config{Env: "prod", Level: "loud"}, wantErr: true},
	}
	for _, tt := range tests {
		l, err := New(tt.cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%+v) err = %v", tt.cfg, err)
		}
		if err == nil && l == nil {
			t.Errorf("New(%+v) returned nil logger", tt.cfg)
		}
	}
}

func TestNew_LevelOverride(t *testing.T) {
	l, err := New(Config{Env: "prod", Level: "warn"})
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
}

func TestFromContext_Fallback(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected nop logger")
	}
}

func TestWith(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))
	ctx = With(ctx, zap.String("query_id", "31_1"))

	FromContext(ctx).Info("hello")

	entries := logs.All()
	if len(entries) != 1 || entries[0].ContextMap()["query_id"] != "31_1" {
		t.Fatalf("entries = %v", entries)
	}
}
