package httppresentation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	appbilling "github.com/bizshop/storefront/internal/application/billing"
	apporder "github.com/bizshop/storefront/internal/application/order"
	"github.com/bizshop/storefront/internal/auth"
	domaccount "github.com/bizshop/storefront/internal/domain/account"
	domcatalog "github.com/bizshop/storefront/internal/domain/catalog"
	domorder "github.com/bizshop/storefront/internal/domain/order"
	dompayment "github.com/bizshop/storefront/internal/domain/payment"
	dompromotion "github.com/bizshop/storefront/internal/domain/promotion"
	"github.com/bizshop/storefront/internal/observability"
)

const (
	componentHTTPHandler   = "http_server"
	headerGatewaySignature = "X-Gateway-Signature"
	maxWebhookBody         = 1 << 20
)

type Handler struct {
	orders  *apporder.Service
	billing *appbilling.Service
	webhook *appbilling.WebhookProcessor
	tokens  *auth.TokenManager
	metrics http.Handler
	log     observability.Logger
	tel     observability.Observability
}

func NewHandler(
	orderSvc *apporder.Service,
	billingSvc *appbilling.Service,
	webhook *appbilling.WebhookProcessor,
	tokens *auth.TokenManager,
	metricsHandler http.Handler,
	tel observability.Observability,
) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		orders:  orderSvc,
		billing: billingSvc,
		webhook: webhook,
		tokens:  tokens,
		metrics: metricsHandler,
		log:     tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:     tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(ObservabilityMiddleware(h.log, h.tel))

	r.Get("/health", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Get("/billing/promotion/status", h.handlePromotionStatus)
	r.Post("/payments/webhook", h.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.tokens))

		r.Post("/orders", h.handlePlaceOrder)
		r.Get("/orders/mine", h.handleListMine)
		r.Get("/orders/store", h.handleListStore)
		r.Get("/orders/{id}", h.handleGetOrder)
		r.Patch("/orders/{id}/status", h.handleUpdateStatus)

		r.Post("/billing/plan", h.handleSelectPlan)
		r.Get("/billing/subscription", h.handleSubscription)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type shippingAddressPayload struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type placeOrderRequest struct {
	Items           []cartItemRequest      `json:"items"`
	ShippingAddress shippingAddressPayload `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken)
		return
	}

	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	items := make([]apporder.CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, apporder.CartItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.orders.PlaceOrder(r.Context(), apporder.PlaceOrderInput{
		CustomerID: id.AccountID,
		Items:      items,
		ShippingAddress: domorder.ShippingAddress{
			Address:    req.ShippingAddress.Address,
			City:       req.ShippingAddress.City,
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    req.ShippingAddress.Country,
		},
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderToPayload(order))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken)
		return
	}

	order, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !auth.CanViewOrder(id, order) {
		// A 404 keeps foreign order ids unguessable.
		writeError(w, http.StatusNotFound, domorder.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, orderToPayload(order))
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken)
		return
	}

	orders, err := h.orders.ListMine(r.Context(), id.AccountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ordersToPayload(orders))
}

type storeOrdersResponse struct {
	Orders []orderPayload `json:"orders"`
	Total  int            `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

func (h *Handler) handleListStore(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken)
		return
	}
	if err := auth.RequireMerchant(id); err != nil {
		writeError(w, http.StatusForbidden, err)
		return
	}

	filter := domorder.ListFilter{
		Status: domorder.Status(r.URL.Query().Get("status")),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 10),
	}
	if filter.Status != "" {
		if _, err := domorder.ParseStatus(string(filter.Status)); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	orders, total, err := h.orders.ListForStore(r.Context(), id.StoreID, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, storeOrdersResponse{
		Orders: ordersToPayload(orders),
		Total:  total,
		Page:   filter.Page,
		Limit:  filter.Limit,
	})
}

type updateStatusRequest struct {
	Status        string                `json:"status"`
	IsPaid        *bool                 `json:"is_paid,omitempty"`
	PaymentResult *paymentResultPayload `json:"payment_result,omitempty"`
	DeliveredAt   *time.Time            `json:"delivered_at,omitempty"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken)
		return
	}
	if err := auth.RequireMerchant(id); err != nil {
		writeError(w, http.StatusForbidden, err)
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	input := apporder.UpdateStatusInput{
		OrderID:     chi.URLParam(r, "id"),
		StoreID:     id.StoreID,
		Status:      req.Status,
		IsPaid:      req.IsPaid,
		DeliveredAt: req.DeliveredAt,
	}
	if req.PaymentResult != nil {
		input.PaymentResult = &domorder.PaymentResult{
			ID:     req.PaymentResult.ID,
			Status: req.PaymentResult.Status,
		}
	}

	order, err := h.orders.UpdateStatus(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToPayload(order))
}

type promotionStatusResponse struct {
	Active           bool   `json:"active"`
	Available        bool   `json:"available"`
	MaxUsers         int    `json:"max_users"`
	UsersClaimed     int    `json:"users_claimed"`
	AvailableSlots   int    `json:"available_slots"`
	Reward           string `json:"reward"`
	DiscountedAmount string `json:"discounted_amount,omitempty"`
	DurationDays     int    `json:"duration_days"`
}

func (h *Handler) handlePromotionStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.billing.PromotionStatus(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := promotionStatusResponse{
		Active:         status.Active,
		Available:      status.Available,
		MaxUsers:       status.MaxUsers,
		UsersClaimed:   status.UsersClaimed,
		AvailableSlots: status.AvailableSlots,
		Reward:         string(status.Reward),
		DurationDays:   status.DurationDays,
	}
	if status.Reward == dompromotion.RewardDiscountedCharge {
		resp.DiscountedAmount = status.DiscountedAmount.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

type selectPlanRequest struct {
	PlanType string          `json:"plan_type"`
	Amount   decimal.Decimal `json:"amount"`
}

type intentPayload struct {
	ID          string `json:"id"`
	Currency    string `json:"currency"`
	AmountMinor int64  `json:"amount_minor"`
	Receipt     string `json:"receipt"`
}

type selectPlanResponse struct {
	Activated bool           `json:"activated"`
	Tier      string         `json:"tier"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	Intent    *intentPayload `json:"intent,omitempty"`
}

func (h *Handler) handleSelectPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken)
		return
	}

	var req selectPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	selection, err := h.billing.SelectPlan(r.Context(), id.AccountID, req.PlanType, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := selectPlanResponse{
		Activated: selection.Activated,
		Tier:      string(selection.Tier),
		ExpiresAt: selection.ExpiresAt,
	}
	if selection.Intent != nil {
		resp.Intent = &intentPayload{
			ID:          selection.Intent.ID,
			Currency:    selection.Intent.Currency,
			AmountMinor: selection.Intent.AmountMinor,
			Receipt:     selection.Intent.Receipt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type subscriptionResponse struct {
	AccountID string     `json:"account_id"`
	Tier      string     `json:"tier"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	QuotaUsed bool       `json:"quota_used"`
}

func (h *Handler) handleSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken)
		return
	}

	acct, err := h.billing.Subscription(r.Context(), id.AccountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionResponse{
		AccountID: acct.ID,
		Tier:      string(acct.Tier),
		ExpiresAt: acct.ExpiresAt,
		QuotaUsed: acct.QuotaUsed,
	})
}

// handleWebhook answers 400 only when the signature check fails; every other
// outcome is a 200 so the gateway does not retry events we have already seen
// or deliberately ignored.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.webhook.Process(r.Context(), raw, r.Header.Get(headerGatewaySignature)); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type lineItemPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
}

type paymentResultPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type orderPayload struct {
	ID              string                 `json:"id"`
	CustomerID      string                 `json:"customer_id"`
	StoreID         string                 `json:"store_id"`
	Items           []lineItemPayload      `json:"items"`
	ShippingAddress shippingAddressPayload `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
	ItemsPrice      string                 `json:"items_price"`
	TaxPrice        string                 `json:"tax_price"`
	ShippingPrice   string                 `json:"shipping_price"`
	TotalPrice      string                 `json:"total_price"`
	Status          string                 `json:"status"`
	PaymentResult   *paymentResultPayload  `json:"payment_result,omitempty"`
	IsPaid          bool                   `json:"is_paid"`
	PaidAt          *time.Time             `json:"paid_at,omitempty"`
	IsDelivered     bool                   `json:"is_delivered"`
	DeliveredAt     *time.Time             `json:"delivered_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

func orderToPayload(o *domorder.Order) orderPayload {
	items := make([]lineItemPayload, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, lineItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price.String(),
			Quantity:  item.Quantity,
		})
	}
	payload := orderPayload{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		StoreID:    o.StoreID,
		Items:      items,
		ShippingAddress: shippingAddressPayload{
			Address:    o.ShippingAddress.Address,
			City:       o.ShippingAddress.City,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
		},
		PaymentMethod: string(o.PaymentMethod),
		ItemsPrice:    o.ItemsPrice.StringFixed(2),
		TaxPrice:      o.TaxPrice.StringFixed(2),
		ShippingPrice: o.ShippingPrice.StringFixed(2),
		TotalPrice:    o.TotalPrice.StringFixed(2),
		Status:        string(o.Status),
		IsPaid:        o.IsPaid,
		PaidAt:        o.PaidAt,
		IsDelivered:   o.IsDelivered,
		DeliveredAt:   o.DeliveredAt,
		CreatedAt:     o.CreatedAt,
	}
	if o.PaymentResult != nil {
		payload.PaymentResult = &paymentResultPayload{ID: o.PaymentResult.ID, Status: o.PaymentResult.Status}
	}
	return payload
}

func ordersToPayload(orders []*domorder.Order) []orderPayload {
	out := make([]orderPayload, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderToPayload(o))
	}
	return out
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var stockErr *domcatalog.InsufficientStockError
	var gatewayErr *dompayment.GatewayError
	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      stockErr.Error(),
			"product_id": stockErr.ProductID,
			"available":  stockErr.Available,
			"requested":  stockErr.Requested,
		})
	case errors.As(err, &gatewayErr):
		writeError(w, http.StatusBadGateway, err)
	case errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domcatalog.ErrNotFound),
		errors.Is(err, domaccount.ErrNotFound),
		errors.Is(err, dompromotion.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domorder.ErrConflict),
		errors.Is(err, domorder.ErrCrossStore),
		errors.Is(err, domaccount.ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, dompromotion.ErrUnavailable),
		errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, domorder.ErrEmptyCart),
		errors.Is(err, domorder.ErrIncompleteAddress),
		errors.Is(err, domorder.ErrInvalidPaymentMethod),
		errors.Is(err, domorder.ErrInvalidQuantity),
		errors.Is(err, domorder.ErrInvalidStatus),
		errors.Is(err, domcatalog.ErrInvalidQuantity),
		errors.Is(err, appbilling.ErrUnknownPlan),
		errors.Is(err, dompayment.ErrInvalidAmount),
		errors.Is(err, dompayment.ErrMissingCredentials),
		errors.Is(err, dompayment.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
