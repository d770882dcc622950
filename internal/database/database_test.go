package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/NovaByteCorp/deliverypro/internal/config"
)

func memoryDSN() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Database
		wantErr bool
		replica bool
	}{
		{name: "sqlite writer only", cfg: config.Database{Driver: "sqlite", WriterDSN: memoryDSN()}},
		{name: "sqlite with replica", cfg: config.Database{Driver: "sqlite", WriterDSN: memoryDSN(), ReaderDSN: memoryDSN()}, replica: true},
		{name: "unknown driver", cfg: config.Database{Driver: "oracle", WriterDSN: "x"}, wantErr: true},
		{name: "empty dsn", cfg: config.Database{Driver: "sqlite"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conns, err := Open(tt.cfg, zap.NewNop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer conns.Close()

			if got := conns.Reader != conns.Writer; got != tt.replica {
				t.Errorf("separate reader = %v, want %v", got, tt.replica)
			}
			if err := conns.Ping(context.Background()); err != nil {
				t.Errorf("Ping() error = %v", err)
			}
		})
	}
}

func TestQueryLogger(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	conns, err := Open(config.Database{
		Driver:             "sqlite",
		WriterDSN:          memoryDSN(),
		SlowQueryThreshold: time.Nanosecond,
	}, zap.New(core))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer conns.Close()
	ctx := context.Background()

	if _, err := conns.Writer.ExecContext(ctx, "SELECT 1"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if logs.FilterMessage("slow query").Len() == 0 {
		t.Error("slow query not logged")
	}

	if _, err := conns.Writer.ExecContext(ctx, "SELECT * FROM missing_table"); err == nil {
		t.Fatal("expected error")
	}
	if logs.FilterMessage("query failed").Len() != 1 {
		t.Errorf("failed query logs = %d", logs.FilterMessage("query failed").Len())
	}
}
