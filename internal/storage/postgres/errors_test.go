package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/jkaninda/mealplanner/internal/storage"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"record not found", fmt.Errorf("getting: %w", gorm.ErrRecordNotFound), storage.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, storage.ErrConflict},
		{"fk violation", &pgconn.PgError{Code: "23503"}, storage.ErrConflict},
		{"serialization", &pgconn.PgError{Code: "40001"}, storage.ErrConflict},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, storage.ErrConflict},
		{"connection failure", &pgconn.PgError{Code: "08006"}, storage.ErrUnavailable},
		{"too many connections", &pgconn.PgError{Code: "53300"}, storage.ErrUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, storage.ErrUnavailable},
		{"syntax error", &pgconn.PgError{Code: "42601"}, storage.ErrInternal},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), storage.ErrUnavailable},
		{"bad conn", driver.ErrBadConn, storage.ErrUnavailable},
		{"other", errors.New("boom"), storage.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("translate(%v) = %v, want %v", tt.err, got, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("cause lost in %v", got)
			}
		})
	}

	if translate(nil) != nil {
		t.Error("translate(nil) should be nil")
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	if c.maxOpen() != 5 {
		t.Errorf("maxOpen = %d, want 5", c.maxOpen())
	}
	if c.acquireTimeout() != 3*time.Second {
		t.Errorf("acquireTimeout = %v, want 3s", c.acquireTimeout())
	}

	c = Config{MaxOpenConns: 1, MaxIdleConns: 4}
	if c.maxIdle() != 1 {
		t.Errorf("maxIdle = %d, should not exceed maxOpen", c.maxIdle())
	}
}

func TestOpen_RejectsBadDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{DSN: "postgresql://u:p@h:notaport/d"}, discardLogger())
	if err == nil {
		t.Fatal("expected parse error")
	}
}
