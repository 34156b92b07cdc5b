package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cmsledger/config"
	memoryRepo "cmsledger/database/repository/memory"
	"cmsledger/handlers"
	"cmsledger/models"
	"cmsledger/routes"
	"cmsledger/services/events"
	"cmsledger/services/gateway"
	"cmsledger/services/invoice"
	"cmsledger/services/ledger"
	"cmsledger/services/payment"
	"cmsledger/services/sequence"
	"cmsledger/services/storage"
	"cmsledger/utils"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const (
	testJWTSecret     = "handler-test-secret"
	testGatewaySecret = "gateway-secret"
	testWebhookSecret = "whsec_handlers"
)

type stubGateway struct {
	mu     sync.Mutex
	seq    int
	byKey  map[string]*gateway.Order
	states map[string]*gateway.OrderState
}

func (g *stubGateway) CreateOrder(_ context.Context, amount float64, currency, key string, _ map[string]string) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if o, ok := g.byKey[key]; ok {
		return o, nil
	}
	g.seq++
	o := &gateway.Order{ID: fmt.Sprintf("pi_%d", g.seq), ClientSecret: "cs", AmountMinor: utils.ToMinorUnits(amount), Currency: currency, Status: gateway.OrderPending}
	g.byKey[key] = o
	return o, nil
}

func (g *stubGateway) GetOrderStatus(_ context.Context, orderID string) (*gateway.OrderState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok := g.states[orderID]; ok {
		return st, nil
	}
	return &gateway.OrderState{OrderID: orderID, Status: gateway.OrderPending}, nil
}

func (g *stubGateway) Cancel(_ context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok := g.states[orderID]; ok && st.Status == gateway.OrderPaid {
		return gateway.ErrAlreadyCaptured
	}
	g.states[orderID] = &gateway.OrderState{OrderID: orderID, Status: gateway.OrderFailed}
	return nil
}

func (g *stubGateway) Refund(_ context.Context, orderID string, _ float64, _, _ string) (*gateway.RefundReceipt, error) {
	return &gateway.RefundReceipt{ID: "re_" + orderID, Status: "succeeded"}, nil
}

type noopQueue struct{}

func (noopQueue) EnqueueRender(context.Context, string) error { return nil }

type noopNotifier struct{}

func (noopNotifier) SendPaymentConfirmation(context.Context, string, *models.Payment, *models.Booking, *models.Invoice) {
}

type server struct {
	router   *gin.Engine
	store    *memoryRepo.Store
	gw       *stubGateway
	svc      *payment.DefaultPaymentService
	renderer *invoice.Renderer
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.AppConfig.JWTSecret = testJWTSecret
	t.Cleanup(func() { config.AppConfig.JWTSecret = "" })

	store := memoryRepo.NewStore()
	for _, id := range []string{"B1", "B2"} {
		store.PutBooking(models.Booking{ID: id, TrackingID: "CMS-" + id, UserID: "U1", Weight: 1, Status: "Pending Payment"})
	}
	store.PutBooking(models.Booking{ID: "B3", TrackingID: "CMS-B3", UserID: "U2", Weight: 1, Status: "Pending Payment"})
	store.PutUser(models.User{ID: "U1", Name: "Asha", Email: "asha@example.com"})
	store.PutUser(models.User{ID: "U2", Name: "Ravi", Email: "ravi@example.com"})

	files, err := storage.NewLocalFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFileStore: %v", err)
	}

	logger := zap.NewNop()
	gw := &stubGateway{byKey: map[string]*gateway.Order{}, states: map[string]*gateway.OrderState{}}
	recorder := ledger.NewRecorder(store.Transactions(), ledger.FeePolicy{GatewayPercent: 2}, logger)
	svc := &payment.DefaultPaymentService{
		Payments:        store.Payments(),
		Bookings:        store.Bookings(),
		Users:           store.Users(),
		Invoices:        store.Invoices(),
		Tx:              store,
		Ledger:          recorder,
		Invoicer:        invoice.NewBuilder(store.Invoices(), sequence.NewAllocator(store.Counters()), 18),
		Gateway:         gw,
		Verifier:        payment.NewSignatureVerifier(testGatewaySecret),
		Renders:         noopQueue{},
		Notifier:        noopNotifier{},
		Events:          events.NopPublisher{},
		Logger:          logger,
		DefaultCurrency: "INR",
	}

	router := gin.New()
	bundle := handlers.NewHandlerBundle(
		store.Users(),
		&handlers.PaymentHandler{Payments: svc, Ledger: recorder},
		&handlers.InvoiceHandler{Invoices: invoice.NewService(store.Invoices(), files, noopQueue{}, logger)},
		&handlers.WebhookHandler{Payments: svc, Secret: testWebhookSecret},
	)
	routes.RegisterRoutes(router, bundle)

	return &server{
		router:   router,
		store:    store,
		gw:       gw,
		svc:      svc,
		renderer: invoice.NewRenderer(store.Invoices(), files, invoice.Issuer{Name: "CMS"}, logger),
	}
}

func token(t *testing.T, subject, role string) string {
	t.Helper()
	tok, err := utils.GenerateToken(subject, role, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *server) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, w.Body.String())
	}
	if !env.Success {
		t.Fatalf("expected success envelope, got %s", w.Body.String())
	}
	if into != nil {
		if err := json.Unmarshal(env.Data, into); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
}

func (s *server) createOrder(t *testing.T, user, bookingID string, amount float64) models.OrderResult {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/payments/create-order", token(t, user, "user"),
		map[string]interface{}{"bookingId": bookingID, "amount": amount, "currency": "INR"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create-order: status %d body %s", w.Code, w.Body.String())
	}
	var res models.OrderResult
	decode(t, w, &res)
	return res
}

func (s *server) verify(t *testing.T, user, orderID, paymentID string) models.CompletionResult {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/payments/verify", token(t, user, "user"), map[string]string{
		"orderId":   orderID,
		"paymentId": paymentID,
		"signature": s.svc.Verifier.Sign(orderID, paymentID),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("verify: status %d body %s", w.Code, w.Body.String())
	}
	var res models.CompletionResult
	decode(t, w, &res)
	return res
}

func TestCreateAndVerifyPayment(t *testing.T) {
	s := newServer(t)
	order := s.createOrder(t, "U1", "B1", 500)
	if order.OrderID == "" || order.Amount != 500 {
		t.Fatalf("unexpected order %+v", order)
	}

	res := s.verify(t, "U1", order.OrderID, "pay_1")
	if res.Payment.Status != models.PaymentCompleted {
		t.Fatalf("payment status = %s", res.Payment.Status)
	}
	if res.Invoice == nil || !strings.HasPrefix(res.Invoice.InvoiceNumber, "INV-") {
		t.Fatalf("unexpected invoice %+v", res.Invoice)
	}

	// A replay returns the same aggregate.
	again := s.verify(t, "U1", order.OrderID, "pay_1")
	if again.Invoice.ID != res.Invoice.ID {
		t.Fatalf("replay returned invoice %s, want %s", again.Invoice.ID, res.Invoice.ID)
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	s := newServer(t)
	order := s.createOrder(t, "U1", "B1", 500)

	w := s.do(t, http.MethodPost, "/api/payments/verify", token(t, "U1", "user"), map[string]string{
		"orderId":   order.OrderID,
		"paymentId": "pay_1",
		"signature": "deadbeef",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	p, err := s.store.Payments().GetByOrderID(context.Background(), order.OrderID)
	if err != nil {
		t.Fatalf("GetByOrderID: %v", err)
	}
	if p.Status != models.PaymentPending {
		t.Fatalf("payment status = %s, want pending", p.Status)
	}
}

func TestCreateOrderForeignBookingIsNotFound(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, "/api/payments/create-order", token(t, "U1", "user"),
		map[string]interface{}{"bookingId": "B3", "amount": 100})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestAuthorization(t *testing.T) {
	s := newServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		bearer string
		want   int
	}{
		{"no token", http.MethodGet, "/api/payments/user/U1", "", http.StatusUnauthorized},
		{"own payments", http.MethodGet, "/api/payments/user/U1", token(t, "U1", "user"), http.StatusOK},
		{"other user's payments", http.MethodGet, "/api/payments/user/U1", token(t, "U2", "user"), http.StatusForbidden},
		{"operator sees any user", http.MethodGet, "/api/payments/user/U1", token(t, "ops", utils.RoleOperator), http.StatusOK},
		{"unknown user token", http.MethodGet, "/api/payments/user/U9", token(t, "U9", "user"), http.StatusUnauthorized},
		{"user cannot list invoices", http.MethodGet, "/api/billing/invoices", token(t, "U1", "user"), http.StatusUnauthorized},
		{"operator lists invoices", http.MethodGet, "/api/billing/invoices", token(t, "ops", utils.RoleOperator), http.StatusOK},
		{"bad status filter", http.MethodGet, "/api/payments/user/U1?status=bogus", token(t, "U1", "user"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.bearer, nil)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestOperatorRefund(t *testing.T) {
	s := newServer(t)
	order := s.createOrder(t, "U1", "B1", 500)
	res := s.verify(t, "U1", order.OrderID, "pay_1")

	body := map[string]interface{}{"paymentId": res.Payment.ID, "amount": 200, "reason": "damaged parcel"}
	if w := s.do(t, http.MethodPost, "/api/payments/refund", token(t, "U1", "user"), body); w.Code != http.StatusUnauthorized {
		t.Fatalf("user refund status = %d, want 401", w.Code)
	}

	w := s.do(t, http.MethodPost, "/api/payments/refund", token(t, "ops-7", utils.RoleOperator), body)
	if w.Code != http.StatusOK {
		t.Fatalf("refund status = %d body %s", w.Code, w.Body.String())
	}
	var refund models.RefundResult
	decode(t, w, &refund)
	if refund.Transaction == nil || refund.Transaction.Type != models.TransactionRefund {
		t.Fatalf("unexpected refund result %+v", refund)
	}

	p, _ := s.store.Payments().GetByID(context.Background(), res.Payment.ID)
	if p.Status != models.PaymentRefunded || p.RefundAmount != 200 {
		t.Fatalf("payment after refund: status=%s refunded=%v", p.Status, p.RefundAmount)
	}

	// Over-refund is rejected.
	over := map[string]interface{}{"paymentId": res.Payment.ID, "amount": 400}
	if w := s.do(t, http.MethodPost, "/api/payments/refund", token(t, "ops-7", utils.RoleOperator), over); w.Code == http.StatusOK {
		t.Fatal("expected second refund to be rejected")
	}
}

func TestRetryOrderAfterFailure(t *testing.T) {
	s := newServer(t)
	first := s.createOrder(t, "U1", "B1", 500)

	w := s.do(t, http.MethodPost, "/api/payments/failure", token(t, "U1", "user"),
		map[string]string{"orderId": first.OrderID, "reason": "card declined"})
	if w.Code != http.StatusOK {
		t.Fatalf("failure: status %d body %s", w.Code, w.Body.String())
	}

	second := s.createOrder(t, "U1", "B1", 500)
	if second.OrderID == first.OrderID || second.PaymentID == first.PaymentID {
		t.Fatalf("retry reused the failed order: %+v", second)
	}
	res := s.verify(t, "U1", second.OrderID, "pay_2")
	if res.Payment.Status != models.PaymentCompleted {
		t.Fatalf("payment status = %s", res.Payment.Status)
	}

	// Paid bookings take no further orders.
	w = s.do(t, http.MethodPost, "/api/payments/create-order", token(t, "U1", "user"),
		map[string]interface{}{"bookingId": "B1", "amount": 500, "currency": "INR"})
	if w.Code != http.StatusConflict {
		t.Fatalf("order on paid booking status = %d, want 409", w.Code)
	}
}

func TestDownloadInvoice(t *testing.T) {
	s := newServer(t)
	order := s.createOrder(t, "U1", "B1", 500)
	res := s.verify(t, "U1", order.OrderID, "pay_1")
	path := "/api/payments/invoice/" + res.Invoice.ID + "/download"

	if w := s.do(t, http.MethodGet, path, token(t, "U1", "user"), nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status before render = %d, want 503", w.Code)
	}

	if err := s.renderer.Render(context.Background(), res.Invoice.ID); err != nil {
		t.Fatalf("Render: %v", err)
	}

	for _, p := range []string{path, "/api/payments/invoice/" + res.Invoice.ID} {
		if w := s.do(t, http.MethodGet, p, token(t, "U2", "user"), nil); w.Code != http.StatusNotFound {
			t.Fatalf("foreign GET %s status = %d, want 404", p, w.Code)
		}
	}

	w := s.do(t, http.MethodGet, path, token(t, "U1", "user"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("download status = %d body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")) {
		t.Fatal("body is not a PDF")
	}
	want := fmt.Sprintf(`attachment; filename="invoice_%s.pdf"`, res.Invoice.InvoiceNumber)
	if got := w.Header().Get("Content-Disposition"); got != want {
		t.Fatalf("Content-Disposition = %q, want %q", got, want)
	}

	inv, _ := s.store.Invoices().GetByID(context.Background(), res.Invoice.ID)
	if inv.DownloadCount != 1 {
		t.Fatalf("download count = %d, want 1", inv.DownloadCount)
	}
}

func TestListTransactions(t *testing.T) {
	s := newServer(t)
	order := s.createOrder(t, "U1", "B1", 500)
	s.verify(t, "U1", order.OrderID, "pay_1")

	w := s.do(t, http.MethodGet, "/api/payments/transactions/U1?type=payment", token(t, "U1", "user"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	var data struct {
		Transactions []models.Transaction `json:"transactions"`
	}
	decode(t, w, &data)
	if len(data.Transactions) != 1 || data.Transactions[0].Status != models.TransactionCompleted {
		t.Fatalf("unexpected transactions %+v", data.Transactions)
	}

	if w := s.do(t, http.MethodGet, "/api/payments/transactions/U1?from=15-01-2025", token(t, "U1", "user"), nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d, want 400", w.Code)
	}
}

func signedWebhook(t *testing.T, payload string) string {
	t.Helper()
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	}).Header
}

func (s *server) postWebhook(t *testing.T, payload, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestStripeWebhookCompletesPayment(t *testing.T) {
	s := newServer(t)
	order := s.createOrder(t, "U1", "B1", 500)
	s.gw.states[order.OrderID] = &gateway.OrderState{OrderID: order.OrderID, Status: gateway.OrderPaid, PaymentID: "ch_1"}

	payload := fmt.Sprintf(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":%q,"object":"payment_intent","status":"succeeded","latest_charge":"ch_1"}}}`, order.OrderID)

	if w := s.postWebhook(t, payload, "t=1,v1=bad"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad signature status = %d, want 400", w.Code)
	}

	w := s.postWebhook(t, payload, signedWebhook(t, payload))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	p, _ := s.store.Payments().GetByOrderID(context.Background(), order.OrderID)
	if p.Status != models.PaymentCompleted || p.GatewayPaymentID != "ch_1" {
		t.Fatalf("payment after webhook: %+v", p)
	}

	// Redelivery is acknowledged without a second invoice.
	if w := s.postWebhook(t, payload, signedWebhook(t, payload)); w.Code != http.StatusOK {
		t.Fatalf("redelivery status = %d", w.Code)
	}
	if n := len(s.store.AllInvoices()); n != 1 {
		t.Fatalf("invoices = %d, want 1", n)
	}
}

func TestStripeWebhookUnknownOrderIsAcknowledged(t *testing.T) {
	s := newServer(t)
	payload := `{"id":"evt_9","object":"event","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_unknown","object":"payment_intent","status":"requires_payment_method"}}}`
	if w := s.postWebhook(t, payload, signedWebhook(t, payload)); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/health", "", nil)
	// The monitor is not running in tests, so no dependency has reported healthy.
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}
