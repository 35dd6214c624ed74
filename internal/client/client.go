// Package client provides bindings to a remote market over HTTP or gRPC.
// Domain failures come back as *domain.Error; anything else is a transport
// failure and is returned unchanged.
package client

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rl1809/codemarket/internal/api"
	"github.com/rl1809/codemarket/internal/core/domain"
)

type Market interface {
	Register(ctx context.Context, name, url string) (string, error)
	Stock(ctx context.Context, item string, price decimal.Decimal, delta int, uuid string) (domain.StockReceipt, error)
	Allocate(ctx context.Context, item string, quantity int, uuid string) (domain.StockReceipt, error)
	Purchase(ctx context.Context, req api.PurchaseRequest) (domain.PurchaseReceipt, error)
	LedgerState(ctx context.Context, uuid string) (api.LedgerStateResponse, error)
	VendorNames(ctx context.Context) ([]string, error)
	VendorURLs(ctx context.Context) ([]string, error)
	Close() error
}

// New dials the market at server using the named transport.
func New(transport, server string) (Market, error) {
	switch transport {
	case "http":
		return NewHTTPClient(server), nil
	case "grpc":
		return NewGRPCClient(server)
	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
}
