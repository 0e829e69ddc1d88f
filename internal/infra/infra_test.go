package infra

import (
	"context"
	"testing"
)

func TestConstructorsRejectEmptyURL(t *testing.T) {
	ctx := context.Background()
	if _, err := NewPostgresPool(ctx, ""); err == nil {
		t.Fatalf("expected error for empty database url")
	}
	if _, err := NewRedisClient(ctx, ""); err == nil {
		t.Fatalf("expected error for empty redis url")
	}
	if _, _, err := NewMongoClient(ctx, "", "agrihubdata"); err == nil {
		t.Fatalf("expected error for empty mongo uri")
	}
}

func TestConstructorsRejectMalformedURL(t *testing.T) {
	ctx := context.Background()
	if _, err := NewRedisClient(ctx, "not-a-redis-url"); err == nil {
		t.Fatalf("expected error for malformed redis url")
	}
	if _, err := NewPostgresPool(ctx, "postgres://%zz"); err == nil {
		t.Fatalf("expected error for malformed database url")
	}
}
