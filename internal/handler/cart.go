package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/gamestore/internal/apiclient"
	"github.com/vyrodovalexey/gamestore/internal/cart"
	"github.com/vyrodovalexey/gamestore/internal/checkout"
	"github.com/vyrodovalexey/gamestore/internal/model"
)

const msgMissingQuantity = "La cantidad es requerida"

// CartHandler serves the cart and checkout.
type CartHandler struct {
	responder
	cart     *cart.Store
	checkout *checkout.Service
}

// NewCartHandler creates a new CartHandler instance.
func NewCartHandler(store *cart.Store, co *checkout.Service, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		responder: responder{logger: logger},
		cart:      store,
		checkout:  co,
	}
}

// RegisterRoutes registers the cart routes under the API router.
func (h *CartHandler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/cart", h.GetCart).Methods(http.MethodGet)
	api.HandleFunc("/cart", h.ClearCart).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items", h.AddItem).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{id}", h.SetQuantity).Methods(http.MethodPut)
	api.HandleFunc("/cart/items/{id}", h.RemoveItem).Methods(http.MethodDelete)
	api.HandleFunc("/cart/show", h.visibility((*cart.Store).Show)).Methods(http.MethodPost)
	api.HandleFunc("/cart/hide", h.visibility((*cart.Store).Hide)).Methods(http.MethodPost)
	api.HandleFunc("/cart/toggle", h.visibility((*cart.Store).Toggle)).Methods(http.MethodPost)
	api.HandleFunc("/cart/checkout", h.Checkout).Methods(http.MethodPost)
}

// GetCart handles GET /api/v1/cart requests.
func (h *CartHandler) GetCart(w http.ResponseWriter, _ *http.Request) {
	h.writeSuccess(w, http.StatusOK, h.cart.State())
}

// AddItem handles POST /api/v1/cart/items requests.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var candidate model.CartCandidate
	if !h.decodeBody(w, r, &candidate) {
		return
	}

	if err := candidate.Validate(); err != nil {
		h.handleError(w, apiclient.ValidationError(err), "add cart item")
		return
	}

	h.cart.Add(r.Context(), candidate)
	h.writeSuccess(w, http.StatusOK, h.cart.State())
}

// SetQuantity handles PUT /api/v1/cart/items/{id} requests.
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req QuantityRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if req.Quantity == nil {
		h.handleError(w, apiclient.Validation(msgMissingQuantity), "set cart quantity")
		return
	}

	h.cart.SetQuantity(r.Context(), mux.Vars(r)["id"], *req.Quantity)
	h.writeSuccess(w, http.StatusOK, h.cart.State())
}

// RemoveItem handles DELETE /api/v1/cart/items/{id} requests.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.cart.Remove(r.Context(), mux.Vars(r)["id"])
	h.writeSuccess(w, http.StatusOK, h.cart.State())
}

// ClearCart handles DELETE /api/v1/cart requests.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.cart.Clear(r.Context())
	h.writeSuccess(w, http.StatusOK, h.cart.State())
}

func (h *CartHandler) visibility(change func(*cart.Store)) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		change(h.cart)
		h.writeSuccess(w, http.StatusOK, h.cart.State())
	}
}

// Checkout handles POST /api/v1/cart/checkout requests.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	result, err := h.checkout.Checkout(r.Context())
	if err != nil {
		h.handleError(w, err, "checkout")
		return
	}

	h.writeSuccess(w, http.StatusOK, result)
}
