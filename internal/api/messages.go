// Package api holds the wire messages shared by the HTTP and gRPC
// transports and their clients.
package api

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/rl1809/codemarket/internal/core/domain"
)

type RegisterRequest struct {
	VendorName string `json:"vendor_name"`
	VendorURL  string `json:"vendor_url,omitempty"`
}

type RegisterResponse struct {
	UUID string `json:"uuid"`
}

// StockRequest moves Delta units from store to stock (negative moves back).
type StockRequest struct {
	Item  string          `json:"item"`
	Price decimal.Decimal `json:"price"`
	Delta int             `json:"delta"`
	UUID  string          `json:"uuid"`
}

type AllocateRequest struct {
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
	UUID     string `json:"uuid"`
}

// PurchaseRequest moves goods FROM the named seller TO the buyer identity.
type PurchaseRequest struct {
	Item      string `json:"item"`
	Count     int    `json:"count"`
	From      string `json:"from"`
	To        string `json:"to"`
	RequestID string `json:"request_id,omitempty"`
}

type IdentityRequest struct {
	UUID string `json:"uuid"`
}

type LedgerStateResponse struct {
	Version uint64                   `json:"version"`
	Vendors map[string][]domain.Item `json:"vendors"`
}

type DirectoryResponse struct {
	Values []string `json:"values"`
}

type TransfersResponse struct {
	Transfers []domain.Transfer `json:"transfers"`
}

// PriceHistoryResponse lists the average price of one item per ledger version.
type PriceHistoryResponse struct {
	Item   string              `json:"item"`
	Points []domain.PricePoint `json:"points"`
}

type Empty struct{}

type ErrorBody struct {
	Kind    domain.Kind `json:"kind"`
	Message string      `json:"message"`
}

// ErrorResponse is the only body shape a failed HTTP call returns.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse converts any error into its tagged wire form.
func NewErrorResponse(err error) ErrorResponse {
	var de *domain.Error
	if !errors.As(err, &de) {
		return ErrorResponse{Error: ErrorBody{Kind: domain.KindInternal, Message: "internal error"}}
	}
	msg := de.Message
	if msg == "" {
		msg = string(de.Kind)
	}
	return ErrorResponse{Error: ErrorBody{Kind: de.Kind, Message: msg}}
}

// Err converts the wire form back into a domain error.
func (e ErrorBody) Err() error {
	return &domain.Error{Kind: e.Kind, Message: e.Message}
}

func NewLedgerStateResponse(snap domain.Snapshot) LedgerStateResponse {
	return LedgerStateResponse{Version: snap.Version, Vendors: snap.Accounts}
}
