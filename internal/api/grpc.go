package api

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/rl1809/codemarket/internal/core/domain"
)

const (
	ServiceName = "codemarket.Market"
	CodecName   = "json"
	ErrorDomain = "codemarket"
)

// jsonCodec lets the service run over gRPC with the same JSON messages the
// HTTP API uses. Clients select it with grpc.CallContentSubtype(CodecName).
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type MarketServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Stock(context.Context, *StockRequest) (*domain.StockReceipt, error)
	Allocate(context.Context, *AllocateRequest) (*domain.StockReceipt, error)
	Purchase(context.Context, *PurchaseRequest) (*domain.PurchaseReceipt, error)
	LedgerState(context.Context, *IdentityRequest) (*LedgerStateResponse, error)
	VendorNames(context.Context, *Empty) (*DirectoryResponse, error)
	VendorURLs(context.Context, *Empty) (*DirectoryResponse, error)
}

// FullMethod returns the gRPC path of a Market method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](method string, call func(MarketServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MarketServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MarketServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var MarketServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MarketServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", MarketServer.Register),
		unary("Stock", MarketServer.Stock),
		unary("Allocate", MarketServer.Allocate),
		unary("Purchase", MarketServer.Purchase),
		unary("LedgerState", MarketServer.LedgerState),
		unary("VendorNames", MarketServer.VendorNames),
		unary("VendorURLs", MarketServer.VendorURLs),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "codemarket/market.json",
}

func RegisterMarketServer(s grpc.ServiceRegistrar, srv MarketServer) {
	s.RegisterService(&MarketServiceDesc, srv)
}
