package services

import (
	"tripsplit-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerStream feeds ledger entries to yield one at a time and stops at the
// first error yield returns.
type LedgerStream func(yield func(models.Settlement) error) error

// NetPositions reduces a team's ledger to at most one edge per member pair.
//
// memberIDs fixes the index order: pairs are visited with i < j, i ascending
// then j ascending, and an edge points from the side that owes more. Entries
// whose settler or payer is missing from memberIDs are skipped. Settled entries
// are summed like any other.
func NetPositions(memberIDs []uuid.UUID, stream LedgerStream) ([]models.NetEdge, error) {
	edges := []models.NetEdge{}

	members := make([]uuid.UUID, 0, len(memberIDs))
	index := make(map[uuid.UUID]int, len(memberIDs))
	for _, id := range memberIDs {
		if _, dup := index[id]; dup {
			continue
		}
		index[id] = len(members)
		members = append(members, id)
	}
	if len(members) < 2 {
		return edges, nil
	}

	// owed[{i, j}] is what members[i] owes members[j]; missing cells are zero.
	owed := make(map[[2]int]decimal.Decimal)
	err := stream(func(s models.Settlement) error {
		settler, ok := index[s.SettlerID]
		if !ok {
			return nil
		}
		payer, ok := index[s.PayerID]
		if !ok {
			return nil
		}
		cell := [2]int{settler, payer}
		owed[cell] = owed[cell].Add(s.Amount)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			diff := owed[[2]int{i, j}].Sub(owed[[2]int{j, i}])
			switch diff.Sign() {
			case 1:
				edges = append(edges, models.NetEdge{From: members[i], To: members[j], Amount: diff})
			case -1:
				edges = append(edges, models.NetEdge{From: members[j], To: members[i], Amount: diff.Neg()})
			}
		}
	}
	return edges, nil
}

// SliceStream serves entries from memory.
func SliceStream(entries []models.Settlement) LedgerStream {
	return func(yield func(models.Settlement) error) error {
		for _, e := range entries {
			if err := yield(e); err != nil {
				return err
			}
		}
		return nil
	}
}
