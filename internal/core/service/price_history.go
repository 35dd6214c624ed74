package service

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/codemarket/internal/core/domain"
)

const maxPricePoints = 4096

// priceHistory keeps the average price of every traded item after each
// committed mutation, oldest first.
type priceHistory struct {
	mu     sync.Mutex
	last   uint64
	points map[string][]domain.PricePoint
}

func newPriceHistory() *priceHistory {
	return &priceHistory{points: make(map[string][]domain.PricePoint)}
}

// record takes a snapshot and appends one point per known item. Holding mu
// across the snapshot keeps versions strictly increasing; a snapshot already
// recorded by a concurrent caller is skipped.
func (h *priceHistory) record(take func() domain.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := take()
	if snap.Version <= h.last {
		return
	}
	h.last = snap.Version

	avg := averagePrices(snap)
	for name := range catalog(snap) {
		p := h.points[name]
		if len(p) == maxPricePoints {
			p = p[1:]
		}
		h.points[name] = append(p, domain.PricePoint{Version: snap.Version, Price: avg[name]})
	}
}

func (h *priceHistory) item(name string) []domain.PricePoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.PricePoint{}, h.points[name]...)
}

func (h *priceHistory) all() map[string][]domain.PricePoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string][]domain.PricePoint, len(h.points))
	for name, p := range h.points {
		out[name] = append([]domain.PricePoint{}, p...)
	}
	return out
}

// catalog lists every item name held anywhere in the ledger.
func catalog(snap domain.Snapshot) map[string]struct{} {
	names := make(map[string]struct{})
	for _, items := range snap.Accounts {
		for _, it := range items {
			names[it.Name] = struct{}{}
		}
	}
	return names
}

// averagePrices is the stock-weighted listed price of every item on sale.
// The stored account never sells and is left out.
func averagePrices(snap domain.Snapshot) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	counts := make(map[string]int64)
	for vendor, items := range snap.Accounts {
		if vendor == domain.StoredAccount {
			continue
		}
		for _, it := range items {
			if it.StockQuantity == 0 {
				continue
			}
			n := int64(it.StockQuantity)
			totals[it.Name] = totals[it.Name].Add(it.Price.Mul(decimal.NewFromInt(n)))
			counts[it.Name] += n
		}
	}

	out := make(map[string]decimal.Decimal, len(totals))
	for name, total := range totals {
		out[name] = total.Div(decimal.NewFromInt(counts[name]))
	}
	return out
}
