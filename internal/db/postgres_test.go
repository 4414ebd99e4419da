package db

import (
	"context"
	"testing"
)

func TestInitPostgresSkipsWithoutDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	Pool = nil

	InitPostgres(context.Background())

	if Pool != nil {
		t.Fatal("expected Pool to stay nil without DATABASE_URL")
	}
}
