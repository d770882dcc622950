package seeder

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/config"
	"github.com/NovaByteCorp/deliverypro/internal/database"
	"github.com/NovaByteCorp/deliverypro/internal/entity"
	"github.com/NovaByteCorp/deliverypro/internal/migration"
)

func TestSeeder_RunIsRepeatable(t *testing.T) {
	cfg := config.Config{Database: config.Database{
		Driver:    "sqlite",
		WriterDSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}}
	conns, err := database.Open(cfg.Database, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conns.Close()
	ctx := context.Background()

	m, err := migration.New(cfg, conns, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	s := New(conns, zap.NewNop())
	for i := 0; i < 2; i++ {
		if err := s.Run(ctx); err != nil {
			t.Fatalf("Run() #%d error = %v", i+1, err)
		}
	}

	counts := []struct {
		model any
		want  int
	}{
		{(*entity.User)(nil), 4},
		{(*entity.DeliveryPerson)(nil), 1},
		{(*entity.Restaurant)(nil), 2},
		{(*entity.Product)(nil), 4},
		{(*entity.Order)(nil), 3},
		{(*entity.OrderItem)(nil), 3},
	}
	for _, c := range counts {
		n, err := conns.Reader.NewSelect().Model(c.model).Count(ctx)
		if err != nil {
			t.Fatalf("count %T: %v", c.model, err)
		}
		if n != c.want {
			t.Errorf("%T rows = %d, want %d", c.model, n, c.want)
		}
	}

	var ready entity.Order
	if err := conns.Reader.NewSelect().Model(&ready).Where("status = ?", entity.StatusReady).Scan(ctx); err != nil {
		t.Fatalf("select ready order: %v", err)
	}
	if !ready.Unassigned() {
		t.Errorf("ready order should be unassigned, driver = %v", *ready.DriverID)
	}
}
