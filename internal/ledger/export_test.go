package ledger

import (
	"bytes"
	"context"
	"testing"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/league"
	"github.com/toprakhenaz/sword-combat/internal/repository/memstore"
	"github.com/toprakhenaz/sword-combat/internal/service"
)

func TestExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	game := service.NewGameService(st, league.Default(), nil)
	admin := service.NewAdminService(st, game, service.NewAuditService(st), nil)

	u, err := admin.CreateUser(ctx, 1, 77, "ledger", "Ledger")
	if err != nil {
		t.Fatal(err)
	}
	for _, amt := range []int64{10, 20, -5} {
		if _, err := admin.AddCoins(ctx, 1, u.ID, amt); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	n, err := Export(ctx, st.Transactions(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if n < 3 {
		t.Fatalf("exported %d rows, want at least 3", n)
	}

	var sum int64
	var rows int
	err = Read(&buf, func(tx *domain.Transaction) error {
		rows++
		if tx.Type == domain.TxAdminAdjust {
			sum += tx.Amount
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if rows != n {
		t.Fatalf("read %d rows, exported %d", rows, n)
	}
	if sum != 25 {
		t.Fatalf("admin adjustments = %d, want 25", sum)
	}
}

func TestExportEmpty(t *testing.T) {
	var buf bytes.Buffer
	n, err := Export(context.Background(), memstore.New().Transactions(), &buf)
	if err != nil || n != 0 {
		t.Fatalf("Export = %d, %v", n, err)
	}
	if err := Read(&buf, func(*domain.Transaction) error {
		t.Fatal("unexpected row")
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}
