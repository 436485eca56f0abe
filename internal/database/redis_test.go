package database

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestOpenRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	rdb, err := OpenRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	_ = rdb.Close()

	if _, err := OpenRedis(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := OpenRedis(context.Background(), "http://nope"); err == nil {
		t.Fatalf("expected error for bad scheme")
	}
}
