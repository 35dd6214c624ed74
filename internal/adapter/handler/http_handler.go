package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rl1809/codemarket/internal/api"
	"github.com/rl1809/codemarket/internal/core/domain"
	"github.com/rl1809/codemarket/internal/core/service"
)

const maxBodyBytes = 1 << 20

type HTTPHandler struct {
	market *service.MarketService
}

func NewHTTPHandler(market *service.MarketService) *HTTPHandler {
	return &HTTPHandler{market: market}
}

// Routes registers every endpoint on mux.
func (h *HTTPHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("POST /register", h.Register)
	mux.HandleFunc("GET /vendor_names", h.VendorNames)
	mux.HandleFunc("GET /vendor_urls", h.VendorURLs)
	mux.HandleFunc("POST /api/stock", h.Stock)
	mux.HandleFunc("POST /api/allocate", h.Allocate)
	mux.HandleFunc("POST /api/purchase", h.Purchase)
	mux.HandleFunc("POST /api/ledger_state", h.LedgerState)
	mux.HandleFunc("POST /api/transfers", h.Transfers)
	mux.HandleFunc("GET /api/average_prices", h.AveragePrices)
	mux.HandleFunc("GET /api/price_history", h.PriceHistory)
}

func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	id, err := h.market.Register(r.Context(), req.VendorName, req.VendorURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.RegisterResponse{UUID: id})
}

func (h *HTTPHandler) Stock(w http.ResponseWriter, r *http.Request) {
	var req api.StockRequest
	if !decode(w, r, &req) {
		return
	}

	receipt, err := h.market.Stock(r.Context(), req.Item, req.Price, req.Delta, req.UUID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *HTTPHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req api.AllocateRequest
	if !decode(w, r, &req) {
		return
	}

	receipt, err := h.market.Allocate(r.Context(), req.Item, req.Quantity, req.UUID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *HTTPHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req api.PurchaseRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get("Idempotency-Key")
	}

	receipt, err := h.market.Purchase(r.Context(), req.Item, req.Count, req.From, req.To, req.RequestID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *HTTPHandler) LedgerState(w http.ResponseWriter, r *http.Request) {
	var req api.IdentityRequest
	if !decode(w, r, &req) {
		return
	}

	snap, err := h.market.LedgerState(r.Context(), req.UUID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewLedgerStateResponse(snap))
}

func (h *HTTPHandler) Transfers(w http.ResponseWriter, r *http.Request) {
	var req api.IdentityRequest
	if !decode(w, r, &req) {
		return
	}

	transfers, err := h.market.Transfers(r.Context(), req.UUID)
	if err != nil {
		writeError(w, err)
		return
	}
	if transfers == nil {
		transfers = []domain.Transfer{}
	}
	writeJSON(w, http.StatusOK, api.TransfersResponse{Transfers: transfers})
}

func (h *HTTPHandler) VendorNames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.market.VendorNames(r.Context()))
}

func (h *HTTPHandler) VendorURLs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.market.VendorURLs(r.Context()))
}

func (h *HTTPHandler) AveragePrices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.market.AveragePrices(r.Context()))
}

// PriceHistory answers one item's history with ?item=, otherwise every item's.
func (h *HTTPHandler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	if item == "" {
		writeJSON(w, http.StatusOK, h.market.PriceHistories(r.Context()))
		return
	}

	points, err := h.market.PriceHistory(r.Context(), item)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.PriceHistoryResponse{Item: item, Points: points})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: api.ErrorBody{
			Kind:    domain.KindInvalidRequest,
			Message: "invalid request body",
		}})
		return false
	}
	return true
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindDuplicateVendorName, domain.KindDuplicateVendorURL, domain.KindDuplicateRequest:
		return http.StatusConflict
	case domain.KindUnknownVendor, domain.KindUnknownBuyer, domain.KindUnknownItem:
		return http.StatusNotFound
	case domain.KindInsufficientQuantity:
		return http.StatusUnprocessableEntity
	case domain.KindInvalidQuantity, domain.KindInvalidPrice, domain.KindInvalidVendorName, domain.KindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := api.NewErrorResponse(err)
	writeJSON(w, statusFor(resp.Error.Kind), resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
