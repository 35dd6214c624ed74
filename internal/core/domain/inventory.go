package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StoredAccount is the reserved name of the account holding units not yet
// allocated to any vendor.
const StoredAccount = "stored"

// Item is one catalog entry. Name, price and both pools always travel
// together.
type Item struct {
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StoreQuantity int             `json:"store_quantity"`
	StockQuantity int             `json:"stock_quantity"`
}

// Total is the quantity held across both pools.
func (i Item) Total() int {
	return i.StoreQuantity + i.StockQuantity
}

type Account struct {
	ID        string
	Name      string
	URL       string
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount returns an account with an empty catalog.
func NewAccount(id, name, url string, now time.Time) *Account {
	return &Account{
		ID:        id,
		Name:      name,
		URL:       url,
		Items:     []Item{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (a *Account) index(name string) int {
	for i := range a.Items {
		if a.Items[i].Name == name {
			return i
		}
	}
	return -1
}

// GetItem returns a copy of the named item.
func (a *Account) GetItem(name string) (Item, bool) {
	if i := a.index(name); i >= 0 {
		return a.Items[i], true
	}
	return Item{}, false
}

// AdjustPools applies both deltas and the new price to the named item as one
// unit. An unknown item starts from empty pools and is only added to the
// catalog when the adjustment succeeds. Nothing changes on error.
func (a *Account) AdjustPools(name string, storeDelta, stockDelta int, price decimal.Decimal) (Item, error) {
	i := a.index(name)
	item := Item{Name: name}
	if i >= 0 {
		item = a.Items[i]
	}

	store := item.StoreQuantity + storeDelta
	stock := item.StockQuantity + stockDelta
	if store < 0 || stock < 0 {
		return item, Errorf(KindInsufficientQuantity,
			"%s holds %d in store and %d in stock of %q", a.Name, item.StoreQuantity, item.StockQuantity, name)
	}

	item.StoreQuantity = store
	item.StockQuantity = stock
	item.Price = price
	if i >= 0 {
		a.Items[i] = item
	} else {
		a.Items = append(a.Items, item)
	}
	return item, nil
}

// Clone returns a deep copy safe to hand out of the store.
func (a *Account) Clone() *Account {
	c := *a
	c.Items = make([]Item, len(a.Items))
	copy(c.Items, a.Items)
	return &c
}
