package services

import (
	"time"

	domain "github.com/huanth/bi-a-manager/internal/domain"
)

// OrdersForSession selects the open orders of tableID created within [from, to], both ends
// inclusive, and returns them with the sum of their totals. Settled and cancelled orders
// and orders from other tables are skipped.
func OrdersForSession(orders []domain.Order, tableID int64, from, to time.Time) ([]domain.Order, domain.Money) {
	selected := make([]domain.Order, 0)
	var total domain.Money
	for _, order := range orders {
		if order.TableID != tableID || !order.Status.IsOpen() {
			continue
		}
		if order.CreatedAt.Before(from) || order.CreatedAt.After(to) {
			continue
		}
		selected = append(selected, order)
		total += order.TotalAmount
	}
	return selected, total
}

func orderIDs(orders []domain.Order) []int64 {
	ids := make([]int64, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
	}
	return ids
}
