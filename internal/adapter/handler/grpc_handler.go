package handler

import (
	"context"

	"github.com/rs/zerolog"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/codemarket/internal/api"
	"github.com/rl1809/codemarket/internal/core/domain"
	"github.com/rl1809/codemarket/internal/core/service"
)

type GRPCHandler struct {
	market *service.MarketService
}

var _ api.MarketServer = (*GRPCHandler)(nil)

func NewGRPCHandler(market *service.MarketService) *GRPCHandler {
	return &GRPCHandler{market: market}
}

func (h *GRPCHandler) Register(ctx context.Context, req *api.RegisterRequest) (*api.RegisterResponse, error) {
	id, err := h.market.Register(ctx, req.VendorName, req.VendorURL)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.RegisterResponse{UUID: id}, nil
}

func (h *GRPCHandler) Stock(ctx context.Context, req *api.StockRequest) (*domain.StockReceipt, error) {
	receipt, err := h.market.Stock(ctx, req.Item, req.Price, req.Delta, req.UUID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &receipt, nil
}

func (h *GRPCHandler) Allocate(ctx context.Context, req *api.AllocateRequest) (*domain.StockReceipt, error) {
	receipt, err := h.market.Allocate(ctx, req.Item, req.Quantity, req.UUID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &receipt, nil
}

func (h *GRPCHandler) Purchase(ctx context.Context, req *api.PurchaseRequest) (*domain.PurchaseReceipt, error) {
	receipt, err := h.market.Purchase(ctx, req.Item, req.Count, req.From, req.To, req.RequestID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &receipt, nil
}

func (h *GRPCHandler) LedgerState(ctx context.Context, req *api.IdentityRequest) (*api.LedgerStateResponse, error) {
	snap, err := h.market.LedgerState(ctx, req.UUID)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := api.NewLedgerStateResponse(snap)
	return &resp, nil
}

func (h *GRPCHandler) VendorNames(ctx context.Context, _ *api.Empty) (*api.DirectoryResponse, error) {
	return &api.DirectoryResponse{Values: h.market.VendorNames(ctx)}, nil
}

func (h *GRPCHandler) VendorURLs(ctx context.Context, _ *api.Empty) (*api.DirectoryResponse, error) {
	return &api.DirectoryResponse{Values: h.market.VendorURLs(ctx)}, nil
}

func codeFor(kind domain.Kind) codes.Code {
	switch kind {
	case domain.KindDuplicateVendorName, domain.KindDuplicateVendorURL, domain.KindDuplicateRequest:
		return codes.AlreadyExists
	case domain.KindUnknownVendor, domain.KindUnknownBuyer, domain.KindUnknownItem:
		return codes.NotFound
	case domain.KindInsufficientQuantity:
		return codes.FailedPrecondition
	case domain.KindInvalidQuantity, domain.KindInvalidPrice, domain.KindInvalidVendorName, domain.KindInvalidRequest:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

// toStatus carries the error kind in an ErrorInfo detail so clients can
// rebuild the domain error.
func toStatus(err error) error {
	body := api.NewErrorResponse(err).Error
	st := status.New(codeFor(body.Kind), body.Message)
	if detailed, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: string(body.Kind), Domain: api.ErrorDomain}); derr == nil {
		st = detailed
	}
	return st.Err()
}

// LoggingInterceptor logs every unary call with its outcome.
func LoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		code := status.Code(err)
		ev := logger.Info()
		if code == codes.Internal {
			ev = logger.Error().Err(err)
		}
		ev.Str("method", info.FullMethod).Str("code", code.String()).Msg("grpc_request")
		return resp, err
	}
}
