package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-store-orders/internal/apperr"
	"github.com/ariefcatur/go-store-orders/internal/orders"
	"github.com/ariefcatur/go-store-orders/internal/platform"
	"github.com/ariefcatur/go-store-orders/internal/postgres"
)

const userHeader = "X-User-ID"

type Workflows interface {
	PlaceOrder(ctx context.Context, user orders.User, lines []orders.CartLine) (*platform.Order, error)
	CancelOrder(ctx context.Context, user orders.User, orderID int64) (*platform.Order, error)
	FetchOrders(ctx context.Context, ids []int64, owner *int64) ([]platform.Order, error)
}

type Catalog interface {
	FetchProducts(ctx context.Context, ids []int64) ([]platform.Product, error)
}

type Carts interface {
	Lines(ctx context.Context, userID int64) ([]orders.CartLine, error)
	Clear(ctx context.Context, userID int64) error
}

type Users interface {
	Get(ctx context.Context, id int64) (orders.User, error)
}

// StoreHandler serves the storefront API. Authentication happens in
// front of this service, which passes the user id in X-User-ID.
type StoreHandler struct {
	Orders  Workflows
	Catalog Catalog
	Carts   Carts
	Users   Users
	Log     *zap.Logger
}

func (h *StoreHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/cart", h.showCart)
	r.Get("/orders", h.listOrders)
	r.Post("/orders", h.placeOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
}

type errorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, code int, v any) {
	writeJSON(w, code, map[string]any{"data": v})
}

func (h *StoreHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		h.log().Error("unclassified error", zap.String("path", r.URL.Path), zap.Error(err))
		ae = apperr.Wrap(apperr.KindStorage, "Internal error", err)
	}
	code := statusFor(ae.Kind)
	if code >= 500 {
		h.log().Warn("request failed", zap.String("path", r.URL.Path), zap.String("kind", string(ae.Kind)), zap.Error(err))
	}
	writeJSON(w, code, map[string]any{"error": errorBody{Kind: ae.Kind, Message: ae.Message}})
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindOutOfStock, apperr.KindAlreadyCancelled:
		return http.StatusConflict
	case apperr.KindRemote, apperr.KindTransport:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *StoreHandler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// user resolves the acting user from the header and the users table.
func (h *StoreHandler) user(w http.ResponseWriter, r *http.Request) (orders.User, bool) {
	id, err := strconv.ParseInt(r.Header.Get(userHeader), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": errorBody{Kind: apperr.KindValidation, Message: "Missing or invalid " + userHeader}})
		return orders.User{}, false
	}
	u, err := h.Users.Get(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": errorBody{Kind: apperr.KindNotFound, Message: "Unknown user"}})
		return orders.User{}, false
	}
	if err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.KindStorage, "Error retrieving user", err))
		return orders.User{}, false
	}
	return u, true
}

func (h *StoreHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Catalog.FetchProducts(r.Context(), nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, platform.InStock(platform.NarrowProducts(ps)))
}

// showCart prices the caller's cart against the live catalog.
func (h *StoreHandler) showCart(w http.ResponseWriter, r *http.Request) {
	u, ok := h.user(w, r)
	if !ok {
		return
	}
	lines, err := h.Carts.Lines(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.KindStorage, "Error retrieving cart", err))
		return
	}
	var products []platform.Product
	if len(lines) > 0 {
		ids := make([]int64, len(lines))
		for i, l := range lines {
			ids[i] = l.ProductID
		}
		if products, err = h.Catalog.FetchProducts(r.Context(), ids); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	writeData(w, http.StatusOK, orders.SummarizeCart(lines, products))
}

// listOrders returns the caller's orders, optionally narrowed by ?ids=1,2.
func (h *StoreHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	u, ok := h.user(w, r)
	if !ok {
		return
	}
	ids, err := parseIDs(r.URL.Query().Get("ids"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	found, err := h.Orders.FetchOrders(r.Context(), ids, &u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, platform.NarrowOrders(found))
}

// placeOrder orders the caller's whole cart and empties it on success.
func (h *StoreHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	u, ok := h.user(w, r)
	if !ok {
		return
	}
	lines, err := h.Carts.Lines(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.KindStorage, "Error retrieving cart", err))
		return
	}
	order, err := h.Orders.PlaceOrder(r.Context(), u, lines)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// the order exists; a stale cart is only an annoyance
	if err := h.Carts.Clear(context.WithoutCancel(r.Context()), u.ID); err != nil {
		h.log().Warn("cart not cleared after order", zap.Int64("user_id", u.ID), zap.Int64("order_id", order.ID), zap.Error(err))
	}
	writeData(w, http.StatusCreated, platform.NarrowOrders([]platform.Order{*order})[0])
}

func (h *StoreHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	u, ok := h.user(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, r, apperr.New(apperr.KindValidation, "Invalid order id"))
		return
	}
	order, err := h.Orders.CancelOrder(r.Context(), u, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, platform.NarrowOrders([]platform.Order{*order})[0])
}

func parseIDs(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, apperr.Newf(apperr.KindValidation, "Invalid order id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
