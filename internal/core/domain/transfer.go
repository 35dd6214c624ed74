package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer records goods moving from a seller's stock pool to a buyer.
type Transfer struct {
	ID        string          `json:"id"`
	Item      string          `json:"item"`
	Count     int             `json:"count"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Seller    string          `json:"seller"`
	Buyer     string          `json:"buyer"`
	SellerID  string          `json:"-"`
	BuyerID   string          `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
}

type JournalKind string

const (
	JournalAllocate JournalKind = "allocate"
	JournalStock    JournalKind = "stock"
	JournalSell     JournalKind = "sell"
	JournalReceive  JournalKind = "receive"
)

// JournalEntry is one pool change at a vendor, keyed by ledger version.
type JournalEntry struct {
	Version   uint64
	Vendor    string
	Item      string
	Kind      JournalKind
	Change    int
	Price     decimal.Decimal
	CreatedAt time.Time
}

type StockReceipt struct {
	Item          string          `json:"item"`
	Price         decimal.Decimal `json:"price"`
	StoreQuantity int             `json:"store_quantity"`
	StockQuantity int             `json:"stock_quantity"`
}

// NewStockReceipt reports the post-operation state of an item.
func NewStockReceipt(it Item) StockReceipt {
	return StockReceipt{
		Item:          it.Name,
		Price:         it.Price,
		StoreQuantity: it.StoreQuantity,
		StockQuantity: it.StockQuantity,
	}
}

type PurchaseReceipt struct {
	TransferID string          `json:"transfer_id"`
	Item       string          `json:"item"`
	Count      int             `json:"count"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Total      decimal.Decimal `json:"total"`
	Seller     string          `json:"seller"`
	Buyer      string          `json:"buyer"`
}

// Snapshot is a consistent copy of the whole ledger keyed by vendor name.
type Snapshot struct {
	Version  uint64
	Accounts map[string][]Item
	Names    []string
	URLs     []string
}

// PricePoint is the stock-weighted average price of an item at a ledger
// version. Zero means nothing was on sale.
type PricePoint struct {
	Version uint64          `json:"version"`
	Price   decimal.Decimal `json:"price"`
}
