package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	logger, err := New("shouting", "json")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !logger.Core().Enabled(zap.InfoLevel) {
		t.Error("info level should be enabled")
	}
	if logger.Core().Enabled(zap.DebugLevel) {
		t.Error("debug level should not be enabled for the default")
	}
}

func TestNew_ConsoleFormat(t *testing.T) {
	if _, err := New("debug", "text"); err != nil {
		t.Fatalf("New() error = %v", err)
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext must never return nil")
	}

	logger := zap.NewNop().Named("request")
	ctx := WithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("FromContext should return the logger stored by WithLogger")
	}
}
