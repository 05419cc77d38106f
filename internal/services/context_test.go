package services_test

import (
	"context"
	"testing"

	"pmt/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := services.WithStage(services.WithRunID(context.Background(), "run-42"), "RunningReader")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-42" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "RunningReader" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	if got := services.WithStage(ctx, ""); got != ctx {
		t.Fatal("blank stage should return the same context")
	}
	if _, ok := services.RunIDFromContext(services.WithRunID(ctx, "")); ok {
		t.Fatal("expected no run id value")
	}
}
