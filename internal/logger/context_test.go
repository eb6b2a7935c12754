package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	reqLogger := zap.New(core).With(zap.String("request_id", "r-1"))
	fallback := zap.NewNop()

	tests := []struct {
		name     string
		ctx      context.Context
		fallback *zap.Logger
		want     *zap.Logger
	}{
		{"attached", ContextWithLogger(context.Background(), reqLogger), fallback, reqLogger},
		{"fallback", context.Background(), fallback, fallback},
		{"nil attached uses fallback", ContextWithLogger(context.Background(), nil), fallback, fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromContext(tt.ctx, tt.fallback); got != tt.want {
				t.Errorf("FromContext returned a different logger")
			}
		})
	}

	if FromContext(context.Background(), nil) == nil {
		t.Fatal("nil fallback must yield a usable logger")
	}

	FromContext(ContextWithLogger(context.Background(), reqLogger), fallback).Info("query")
	entries := logs.All()
	if len(entries) != 1 || entries[0].ContextMap()["request_id"] != "r-1" {
		t.Errorf("request fields not kept: %+v", entries)
	}
}
