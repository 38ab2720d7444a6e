package loads

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryLoadRepo struct {
	loads  map[int64]Load
	byCode map[string]int64
	nextID int64
}

func newMemoryLoadRepo() *memoryLoadRepo {
	return &memoryLoadRepo{loads: make(map[int64]Load), byCode: make(map[string]int64)}
}

func (r *memoryLoadRepo) CreateLoad(ctx context.Context, l Load) (Load, error) {
	if _, ok := r.byCode[l.LoadID]; ok {
		return Load{}, ErrDuplicateLoadID
	}
	r.nextID++
	l.ID = r.nextID
	r.loads[l.ID] = l
	r.byCode[l.LoadID] = l.ID
	return l, nil
}

func (r *memoryLoadRepo) GetLoad(ctx context.Context, id int64) (Load, error) {
	l, ok := r.loads[id]
	if !ok {
		return Load{}, ErrNotFound
	}
	return l, nil
}

func (r *memoryLoadRepo) ListLoads(ctx context.Context, limit, offset int, filters ListFilters) ([]Load, int, error) {
	var items []Load
	for _, l := range r.loads {
		if filters.Status != "" && l.Status != filters.Status {
			continue
		}
		if filters.Carrier != "" && l.Carrier != filters.Carrier {
			continue
		}
		items = append(items, l)
	}
	return items, len(items), nil
}

func (r *memoryLoadRepo) MarkCompleted(ctx context.Context, id int64) error {
	l, ok := r.loads[id]
	if !ok {
		return ErrNotFound
	}
	l.Status = StatusCompleted
	r.loads[id] = l
	return nil
}

func TestCreateLoadFactoredFee(t *testing.T) {
	repo := newMemoryLoadRepo()
	svc := NewService(repo, nil)

	load, err := svc.CreateLoad(context.Background(), CreateLoadInput{
		LoadID:        "SWT-1001",
		Carrier:       "CanAmex",
		Customer:      "Acme Distribution",
		PickupDate:    time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		DeliveryDate:  time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
		GrossAmount:   1000,
		PaymentMethod: MethodFactored,
	})
	require.NoError(t, err)
	require.Equal(t, 3.0, load.FeePercent)
	require.Equal(t, 970.00, load.NetAmount)
}

func TestCreateLoadDirectPayFee(t *testing.T) {
	repo := newMemoryLoadRepo()
	svc := NewService(repo, nil)

	load, err := svc.CreateLoad(context.Background(), CreateLoadInput{
		LoadID:        "SWT-1002",
		Carrier:       "CanAmex",
		Customer:      "Acme Distribution",
		PickupDate:    time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		GrossAmount:   2500,
		PaymentMethod: MethodDirectPay,
	})
	require.NoError(t, err)
	require.Equal(t, 12.0, load.FeePercent)
	require.Equal(t, 2200.00, load.NetAmount)
}

func TestCreateLoadRejectsInvalidInput(t *testing.T) {
	repo := newMemoryLoadRepo()
	svc := NewService(repo, nil)

	_, err := svc.CreateLoad(context.Background(), CreateLoadInput{
		LoadID:        "SWT-1003",
		Carrier:       "CanAmex",
		Customer:      "Acme Distribution",
		GrossAmount:   0,
		PaymentMethod: MethodDirectPay,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateLoadDuplicateLoadID(t *testing.T) {
	repo := newMemoryLoadRepo()
	svc := NewService(repo, nil)

	input := CreateLoadInput{
		LoadID:        "SWT-1004",
		Carrier:       "CanAmex",
		Customer:      "Acme Distribution",
		GrossAmount:   1200,
		PaymentMethod: MethodFactored,
	}
	_, err := svc.CreateLoad(context.Background(), input)
	require.NoError(t, err)
	_, err = svc.CreateLoad(context.Background(), input)
	require.ErrorIs(t, err, ErrDuplicateLoadID)
}

func TestFeeFreeze(t *testing.T) {
	// A load created under the 3% factoring fee keeps its net amount even if
	// the fee table later answers differently for the same method.
	repo := newMemoryLoadRepo()
	svc := NewService(repo, nil)

	load, err := svc.CreateLoad(context.Background(), CreateLoadInput{
		LoadID:        "SWT-1005",
		Carrier:       "CanAmex",
		Customer:      "Acme Distribution",
		GrossAmount:   1000,
		PaymentMethod: MethodFactored,
	})
	require.NoError(t, err)

	stored, err := svc.GetLoad(context.Background(), load.ID)
	require.NoError(t, err)
	require.Equal(t, 970.00, stored.NetAmount)
	require.Equal(t, 3.0, stored.FeePercent)

	// Recomputing from the row uses the frozen percent, not the table.
	require.Equal(t, stored.NetAmount, ComputeNet(stored.GrossAmount, stored.FeePercent))
}

func TestCompleteLoad(t *testing.T) {
	repo := newMemoryLoadRepo()
	svc := NewService(repo, nil)

	load, err := svc.CreateLoad(context.Background(), CreateLoadInput{
		LoadID:        "SWT-1006",
		Carrier:       "CanAmex",
		Customer:      "Acme Distribution",
		GrossAmount:   800,
		PaymentMethod: MethodDirectPay,
	})
	require.NoError(t, err)

	require.NoError(t, svc.CompleteLoad(context.Background(), load.ID, 1))
	stored, err := svc.GetLoad(context.Background(), load.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
}
