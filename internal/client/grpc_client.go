package client

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/rl1809/codemarket/internal/api"
	"github.com/rl1809/codemarket/internal/core/domain"
)

type GRPCClient struct {
	conn *grpc.ClientConn
}

// NewGRPCClient connects lazily; the first call establishes the connection.
func NewGRPCClient(target string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.CodecName)),
	}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", target, err)
	}
	return &GRPCClient{conn: conn}, nil
}

func (c *GRPCClient) Register(ctx context.Context, name, url string) (string, error) {
	var resp api.RegisterResponse
	err := c.invoke(ctx, "Register", &api.RegisterRequest{VendorName: name, VendorURL: url}, &resp)
	return resp.UUID, err
}

func (c *GRPCClient) Stock(ctx context.Context, item string, price decimal.Decimal, delta int, uuid string) (domain.StockReceipt, error) {
	var resp domain.StockReceipt
	err := c.invoke(ctx, "Stock", &api.StockRequest{Item: item, Price: price, Delta: delta, UUID: uuid}, &resp)
	return resp, err
}

func (c *GRPCClient) Allocate(ctx context.Context, item string, quantity int, uuid string) (domain.StockReceipt, error) {
	var resp domain.StockReceipt
	err := c.invoke(ctx, "Allocate", &api.AllocateRequest{Item: item, Quantity: quantity, UUID: uuid}, &resp)
	return resp, err
}

func (c *GRPCClient) Purchase(ctx context.Context, req api.PurchaseRequest) (domain.PurchaseReceipt, error) {
	var resp domain.PurchaseReceipt
	err := c.invoke(ctx, "Purchase", &req, &resp)
	return resp, err
}

func (c *GRPCClient) LedgerState(ctx context.Context, uuid string) (api.LedgerStateResponse, error) {
	var resp api.LedgerStateResponse
	err := c.invoke(ctx, "LedgerState", &api.IdentityRequest{UUID: uuid}, &resp)
	return resp, err
}

func (c *GRPCClient) VendorNames(ctx context.Context) ([]string, error) {
	var resp api.DirectoryResponse
	err := c.invoke(ctx, "VendorNames", &api.Empty{}, &resp)
	return resp.Values, err
}

func (c *GRPCClient) VendorURLs(ctx context.Context) ([]string, error) {
	var resp api.DirectoryResponse
	err := c.invoke(ctx, "VendorURLs", &api.Empty{}, &resp)
	return resp.Values, err
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) invoke(ctx context.Context, method string, in, out any) error {
	if err := c.conn.Invoke(ctx, api.FullMethod(method), in, out); err != nil {
		return fromStatus(err)
	}
	return nil
}

// fromStatus rebuilds a domain error from the ErrorInfo detail; statuses
// without one are transport failures and pass through.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == api.ErrorDomain {
			return &domain.Error{Kind: domain.Kind(info.GetReason()), Message: st.Message()}
		}
	}
	return err
}
