package inventory

import (
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
)

// SyncStrategy selects how stock is reconciled across locations
type SyncStrategy string

const (
	SyncStrategyMirror        SyncStrategy = "mirror"
	SyncStrategyEvenSplit     SyncStrategy = "even_split"
	SyncStrategyFloorMaintain SyncStrategy = "floor_maintain"
)

// DefaultFloor is the FloorMaintain minimum when none is configured
const DefaultFloor = 5

// IsValid returns true if the strategy is known
func (s SyncStrategy) IsValid() bool {
	switch s {
	case SyncStrategyMirror, SyncStrategyEvenSplit, SyncStrategyFloorMaintain:
		return true
	}
	return false
}

// LocationStock is the available quantity of one location in a sync working set
type LocationStock struct {
	LocationID uuid.UUID
	Available  int
}

// SetInstruction asks the ledger to set a location to an absolute quantity
type SetInstruction struct {
	LocationID uuid.UUID
	Quantity   int
}

// TransferInstruction asks the transfer coordinator to move stock
type TransferInstruction struct {
	FromLocationID uuid.UUID
	ToLocationID   uuid.UUID
	Quantity       int
}

// PlanMirror sets every location other than primary to the primary's available
func PlanMirror(primary uuid.UUID, stocks []LocationStock) ([]SetInstruction, error) {
	source := -1
	for i, s := range stocks {
		if s.LocationID == primary {
			source = i
			break
		}
	}
	if source < 0 {
		return nil, shared.Newf(shared.ErrInvalidInput, "primary location %s is not in the location set", primary)
	}

	plan := make([]SetInstruction, 0, len(stocks)-1)
	for i, s := range stocks {
		if i == source {
			continue
		}
		plan = append(plan, SetInstruction{LocationID: s.LocationID, Quantity: stocks[source].Available})
	}
	return plan, nil
}

// PlanEvenSplit spreads the summed stock evenly. The remainder goes one unit
// each to the first locations in list order.
func PlanEvenSplit(stocks []LocationStock) []SetInstruction {
	if len(stocks) == 0 {
		return nil
	}
	sum := 0
	for _, s := range stocks {
		sum += s.Available
	}
	share, remainder := sum/len(stocks), sum%len(stocks)

	plan := make([]SetInstruction, len(stocks))
	for i, s := range stocks {
		qty := share
		if i < remainder {
			qty++
		}
		plan[i] = SetInstruction{LocationID: s.LocationID, Quantity: qty}
	}
	return plan
}

// PlanFloorMaintain backfills every location below floor from the location
// with the largest surplus above floor. A location is skipped when no donor
// can cover its full shortfall.
func PlanFloorMaintain(stocks []LocationStock, floor int) []TransferInstruction {
	if floor <= 0 {
		floor = DefaultFloor
	}
	working := make([]LocationStock, len(stocks))
	copy(working, stocks)

	var plan []TransferInstruction
	for i := range working {
		need := floor - working[i].Available
		if need <= 0 {
			continue
		}
		donor, surplus := -1, 0
		for j := range working {
			if j == i {
				continue
			}
			if s := working[j].Available - floor; s > surplus {
				donor, surplus = j, s
			}
		}
		if donor < 0 || surplus < need {
			continue
		}
		working[donor].Available -= need
		working[i].Available += need
		plan = append(plan, TransferInstruction{
			FromLocationID: working[donor].LocationID,
			ToLocationID:   working[i].LocationID,
			Quantity:       need,
		})
	}
	return plan
}
