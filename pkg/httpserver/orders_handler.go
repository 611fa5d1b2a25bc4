package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/native"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/pkg/orders"
	"github.com/mselser95/exchange-settlement/pkg/signature"
	"github.com/mselser95/exchange-settlement/pkg/types"
)

const maxBodyBytes = 1 << 20

// OrderService answers order queries against committed state.
type OrderService interface {
	Env() *settle.Env
	GetLimitOrderRelevantState(ctx context.Context, now uint64, order *orders.LimitOrder, sig signature.Signature) (native.RelevantState, error)
	GetRfqOrderRelevantState(ctx context.Context, now uint64, order *orders.RfqOrder, sig signature.Signature) (native.RelevantState, error)
	GetOtcOrderInfo(ctx context.Context, now uint64, order *orders.OtcOrder) (orders.OtcOrderInfo, error)
}

// OrdersHandler handles HTTP requests for order hashes and ledger state.
type OrdersHandler struct {
	service OrderService
	clock   func() uint64
	logger  *zap.Logger
}

// NewOrdersHandler creates a new orders handler. A nil clock reads the wall clock.
func NewOrdersHandler(service OrderService, clock func() uint64, logger *zap.Logger) *OrdersHandler {
	if clock == nil {
		clock = func() uint64 { return uint64(time.Now().Unix()) }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrdersHandler{
		service: service,
		clock:   clock,
		logger:  logger,
	}
}

// HashResponse is the response of the hash endpoint.
type HashResponse struct {
	Kind      orders.Kind `json:"kind"`
	OrderHash common.Hash `json:"orderHash"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string     `json:"error"`
	Kind  types.Kind `json:"kind,omitempty"`
}

// StateRequest asks for the relevant state of a signed order. Now defaults
// to the server clock.
type StateRequest[T any] struct {
	Order     *T                  `json:"order"`
	Signature signature.Signature `json:"signature"`
	Now       uint64              `json:"now,omitempty"`
}

// InfoRequest asks for the ledger status of an order.
type InfoRequest[T any] struct {
	Order *T     `json:"order"`
	Now   uint64 `json:"now,omitempty"`
}

// HandleHash handles POST /v1/orders/{kind}/hash.
func (h *OrdersHandler) HandleHash(w http.ResponseWriter, r *http.Request) {
	kind := orders.Kind(chi.URLParam(r, "kind"))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, "read body: "+err.Error(), "", http.StatusBadRequest)
		return
	}

	if _, err := orders.New(kind); err != nil {
		h.writeError(w, err.Error(), "", http.StatusNotFound)
		return
	}

	order, err := orders.Decode(kind, body)
	if err != nil {
		h.writeError(w, err.Error(), "", http.StatusBadRequest)
		return
	}

	hash := order.Hash(h.service.Env().Domain)
	h.logger.Debug("order-hashed", zap.String("kind", string(kind)), zap.String("order-hash", hash.Hex()))
	h.writeJSON(w, http.StatusOK, HashResponse{Kind: kind, OrderHash: hash})
}

// HandleLimitState handles POST /v1/orders/limit/state.
func (h *OrdersHandler) HandleLimitState(w http.ResponseWriter, r *http.Request) {
	var req StateRequest[orders.LimitOrder]
	if !h.decode(w, r, &req) {
		return
	}
	if req.Order == nil {
		h.writeError(w, "order is required", "", http.StatusBadRequest)
		return
	}
	if err := req.Order.Validate(); err != nil {
		h.writeError(w, err.Error(), "", http.StatusBadRequest)
		return
	}

	state, err := h.service.GetLimitOrderRelevantState(r.Context(), h.now(req.Now), req.Order, req.Signature)
	if err != nil {
		h.writeServiceError(w, "limit-order-state-failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

// HandleRfqState handles POST /v1/orders/rfq/state.
func (h *OrdersHandler) HandleRfqState(w http.ResponseWriter, r *http.Request) {
	var req StateRequest[orders.RfqOrder]
	if !h.decode(w, r, &req) {
		return
	}
	if req.Order == nil {
		h.writeError(w, "order is required", "", http.StatusBadRequest)
		return
	}
	if err := req.Order.Validate(); err != nil {
		h.writeError(w, err.Error(), "", http.StatusBadRequest)
		return
	}

	state, err := h.service.GetRfqOrderRelevantState(r.Context(), h.now(req.Now), req.Order, req.Signature)
	if err != nil {
		h.writeServiceError(w, "rfq-order-state-failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

// HandleOtcInfo handles POST /v1/orders/otc/info.
func (h *OrdersHandler) HandleOtcInfo(w http.ResponseWriter, r *http.Request) {
	var req InfoRequest[orders.OtcOrder]
	if !h.decode(w, r, &req) {
		return
	}
	if req.Order == nil {
		h.writeError(w, "order is required", "", http.StatusBadRequest)
		return
	}
	if err := req.Order.Validate(); err != nil {
		h.writeError(w, err.Error(), "", http.StatusBadRequest)
		return
	}

	info, err := h.service.GetOtcOrderInfo(r.Context(), h.now(req.Now), req.Order)
	if err != nil {
		h.writeServiceError(w, "otc-order-info-failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

func (h *OrdersHandler) now(requested uint64) uint64 {
	if requested != 0 {
		return requested
	}
	return h.clock()
}

func (h *OrdersHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err != nil {
		h.writeError(w, fmt.Sprintf("decode request: %v", err), "", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *OrdersHandler) writeServiceError(w http.ResponseWriter, event string, err error) {
	kind := types.KindOf(err)
	status := http.StatusUnprocessableEntity
	if kind == types.KindUnknown {
		status = http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
	}
	h.logger.Warn(event, zap.String("kind", string(kind)), zap.Error(err))
	h.writeError(w, err.Error(), kind, status)
}

func (h *OrdersHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

func (h *OrdersHandler) writeError(w http.ResponseWriter, message string, kind types.Kind, status int) {
	h.writeJSON(w, status, ErrorResponse{Error: message, Kind: kind})
}
