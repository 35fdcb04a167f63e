// Package httpapi serves the REST surface of the service on chi.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"deliveryService/internal/apperr"
	"deliveryService/internal/auth"
	"deliveryService/internal/delivery"
	"deliveryService/internal/geo"
	"deliveryService/internal/lifecycle"
	"deliveryService/internal/logx"
	"deliveryService/models"
)

// Handlers holds the HTTP handlers.
type Handlers struct {
	delivery *delivery.Service
	accounts *auth.Accounts
	logger   logx.Logger
}

func NewHandlers(d *delivery.Service, accounts *auth.Accounts, logger logx.Logger) *Handlers {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Handlers{delivery: d, accounts: accounts, logger: logger}
}

type createOrderRequest struct {
	From *geo.Point `json:"from"`
	To   *geo.Point `json:"to"`
}

type ablyToken struct {
	Token string `json:"token"`
}

type googleMapsKey struct {
	APIKey string `json:"apiKey"`
}

type mapboxToken struct {
	Token string `json:"token"`
}

type createOrderResponse struct {
	OrderID    int64          `json:"orderId"`
	Ably       ablyToken      `json:"ably"`
	GoogleMaps *googleMapsKey `json:"googleMaps,omitempty"`
}

type assignOrderResponse struct {
	*models.Order
	Ably   ablyToken    `json:"ably"`
	Mapbox *mapboxToken `json:"mapbox,omitempty"`
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type createUserResponse struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

func (h *Handlers) principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(h.logger, w, r, apperr.New(apperr.Unauthenticated, "missing principal"))
		return nil, false
	}
	return p, true
}

// Root handles GET / and confirms the credentials.
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.logger, w, r, http.StatusOK, struct{}{})
}

// CreateOrder handles POST /orders.
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	if err := p.Require(models.RoleCustomer); err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	res, err := h.delivery.CreateOrder(r.Context(), p, req.From, req.To)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	out := createOrderResponse{OrderID: res.OrderID, Ably: ablyToken{Token: res.AblyToken}}
	if res.GoogleMapsAPIKey != "" {
		out.GoogleMaps = &googleMapsKey{APIKey: res.GoogleMapsAPIKey}
	}
	writeJSON(h.logger, w, r, http.StatusCreated, out)
}

// AssignOrder handles PUT /orders/{orderId}.
func (h *Handlers) AssignOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	if err := p.Require(models.RoleRider); err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	id, err := lifecycle.ParseOrderID(chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	res, err := h.delivery.AssignOrder(r.Context(), p, id)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	out := assignOrderResponse{Order: res.Order, Ably: ablyToken{Token: res.AblyToken}}
	if res.MapboxToken != "" {
		out.Mapbox = &mapboxToken{Token: res.MapboxToken}
	}
	writeJSON(h.logger, w, r, http.StatusCreated, out)
}

// DeleteOrder handles DELETE /orders/{orderId}.
func (h *Handlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	if err := p.Require(models.RoleCustomer, models.RoleRider); err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	id, err := lifecycle.ParseOrderID(chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	if err := h.delivery.DeleteOrder(r.Context(), p, id); err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, struct{}{})
}

// Ably handles GET /ably.
func (h *Handlers) Ably(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	token, err := h.delivery.AblyToken(r.Context(), p)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, ablyToken{Token: token})
}

// GoogleMaps handles GET /googleMaps.
func (h *Handlers) GoogleMaps(w http.ResponseWriter, r *http.Request) {
	key, err := h.delivery.GoogleMaps()
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, googleMapsKey{APIKey: key})
}

// Mapbox handles GET /mapbox.
func (h *Handlers) Mapbox(w http.ResponseWriter, r *http.Request) {
	token, err := h.delivery.Mapbox()
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, mapboxToken{Token: token})
}

// CreateUser handles POST /admin/user.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	if err := p.Require(models.RoleAdmin); err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	u, err := h.accounts.CreateUser(r.Context(), p, req.Username, req.Password, req.Role)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusCreated, createUserResponse{Username: u.Username, Role: u.Role})
}

// Healthz handles GET /healthz.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// NotFound is the JSON 404 for unknown routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.logger, w, r, http.StatusNotFound, errResponse{Error: "route " + r.URL.Path + " not found"})
}

// MethodNotAllowed is the JSON 405 for known routes.
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.logger, w, r, http.StatusMethodNotAllowed, errResponse{Error: "method " + r.Method + " not allowed"})
}
