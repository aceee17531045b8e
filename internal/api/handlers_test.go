package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bosocmputer/voicebill/internal/conversation"
	"github.com/bosocmputer/voicebill/internal/logger"
	"github.com/bosocmputer/voicebill/internal/messaging"
	"github.com/bosocmputer/voicebill/internal/payment"
	"github.com/bosocmputer/voicebill/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	got   []conversation.Inbound
	reply conversation.Reply
}

func (f *fakeDispatcher) Handle(_ context.Context, in conversation.Inbound) conversation.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, in)
	return f.reply
}

type fakePDF struct{}

func (fakePDF) Bytes(*storage.Invoice) ([]byte, error) { return []byte("%PDF-1.3 fake"), nil }

type recordingMessenger struct {
	to, body []string
}

func (r *recordingMessenger) Send(_ context.Context, to, body string) error {
	r.to = append(r.to, to)
	r.body = append(r.body, body)
	return nil
}

type testServer struct {
	router     *gin.Engine
	store      *storage.MemoryStore
	dispatcher *fakeDispatcher
	messenger  *recordingMessenger
}

func newTestServer(t *testing.T, testMode bool, cfg Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pay, err := payment.New(logger.Nop(), payment.Config{
		KeyID:      "rzp_key",
		KeySecret:  "rzp_secret",
		TestModeOn: testMode,
		BackendURL: "https://bill.example.com",
	})
	require.NoError(t, err)

	ts := &testServer{
		store:      storage.NewMemoryStore(),
		dispatcher: &fakeDispatcher{},
		messenger:  &recordingMessenger{},
	}
	cfg.Now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
	h, err := NewHandler(logger.Nop(), Deps{
		Store:      ts.store,
		Dispatcher: ts.dispatcher,
		PDF:        fakePDF{},
		Payments:   pay,
		Callbacks:  pay,
		Messenger:  ts.messenger,
	}, cfg)
	require.NoError(t, err)

	ts.router = gin.New()
	h.Register(ts.router)
	return ts
}

func (ts *testServer) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) doJSON(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return ts.do(t, method, target, r, "application/json")
}

func (ts *testServer) seedInvoice(t *testing.T, inv storage.Invoice) {
	t.Helper()
	require.NoError(t, ts.store.CreateInvoice(context.Background(), &inv))
}

type twimlDoc struct {
	XMLName  xml.Name `xml:"Response"`
	Messages []string `xml:"Message"`
}

func parseTwiML(t *testing.T, body string) []string {
	t.Helper()
	var doc twimlDoc
	require.NoError(t, xml.Unmarshal([]byte(body), &doc))
	return doc.Messages
}

// twilioSignature signs a webhook the way Twilio does
func twilioSignature(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := fullURL
	for _, k := range keys {
		payload += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, true, Config{})
	w := ts.doJSON(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestWebhook_ParsesFormAndRepliesTwiML(t *testing.T) {
	ts := newTestServer(t, true, Config{})
	ts.dispatcher.reply = conversation.Reply{Messages: []string{"🎤 Processing", "Total <₹118> & done"}}

	form := url.Values{
		"From":              {"whatsapp:+919876543210"},
		"Body":              {""},
		"NumMedia":          {"2"},
		"MediaUrl0":         {"https://api.twilio.com/m/1"},
		"MediaContentType0": {"image/jpeg"},
		"MediaUrl1":         {"https://api.twilio.com/m/2"},
		"MediaContentType1": {"audio/ogg"},
	}
	w := ts.do(t, http.MethodPost, "/api/webhook/whatsapp", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/xml")

	body := w.Body.String()
	require.True(t, strings.HasPrefix(body, "<?xml"))
	require.Contains(t, body, "&lt;₹118&gt; &amp; done")
	require.Equal(t, []string{"🎤 Processing", "Total <₹118> & done"}, parseTwiML(t, body))

	require.Len(t, ts.dispatcher.got, 1)
	in := ts.dispatcher.got[0]
	require.Equal(t, "whatsapp:+919876543210", in.From)
	require.Equal(t, []conversation.Media{
		{URL: "https://api.twilio.com/m/1", ContentType: "image/jpeg"},
		{URL: "https://api.twilio.com/m/2", ContentType: "audio/ogg"},
	}, in.Media)
}

func TestWebhook_EmptyReply(t *testing.T) {
	ts := newTestServer(t, true, Config{})
	form := url.Values{"From": {"whatsapp:+91"}, "Body": {"40"}}
	w := ts.do(t, http.MethodPost, "/api/webhook/whatsapp", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, parseTwiML(t, w.Body.String()))
}

func TestWebhook_RejectsMissingSender(t *testing.T) {
	ts := newTestServer(t, true, Config{})
	w := ts.do(t, http.MethodPost, "/api/webhook/whatsapp", strings.NewReader("Body=hi"), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, ts.dispatcher.got)
}

func TestWebhook_Signature(t *testing.T) {
	ts := newTestServer(t, true, Config{WebhookToken: "tok", PublicURL: "https://bill.example.com"})
	form := url.Values{"From": {"whatsapp:+919876543210"}, "Body": {"help"}}

	w := ts.do(t, http.MethodPost, "/api/webhook/whatsapp", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(messaging.SignatureHeader, twilioSignature("tok", "https://bill.example.com/api/webhook/whatsapp", form))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ts.dispatcher.got, 1)
}

func TestUsers(t *testing.T) {
	ts := newTestServer(t, true, Config{})
	w := ts.doJSON(t, http.MethodPost, "/api/users", `{"phone":"whatsapp:+911112223333","name":"Ravi"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var u storage.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	require.Equal(t, "+911112223333", u.Phone)
	require.Equal(t, "en", u.Language)
	require.NotEmpty(t, u.ID)

	w = ts.doJSON(t, http.MethodPost, "/api/users", `{"name":"no phone"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.doJSON(t, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	var users []storage.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 1)
}

func TestCustomerCRUD(t *testing.T) {
	ts := newTestServer(t, true, Config{})

	w := ts.doJSON(t, http.MethodPost, "/api/customers", `{"user_id":"u1","name":"Zara","email":"zara@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var zara storage.Customer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &zara))

	w = ts.doJSON(t, http.MethodPost, "/api/customers", `{"user_id":"u1","name":"amit"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.doJSON(t, http.MethodPost, "/api/customers", `{"user_id":"u1","name":"Bad","email":"nope"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.doJSON(t, http.MethodGet, "/api/customers?user_id=u1", "")
	var list []storage.Customer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	require.Equal(t, "amit", list[0].Name)

	w = ts.doJSON(t, http.MethodGet, "/api/customers/search/ZA", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)

	require.NoError(t, ts.store.RecordPurchase(context.Background(), zara.ID, 100, 100, time.Now()))
	w = ts.doJSON(t, http.MethodPut, "/api/customers/"+zara.ID, `{"user_id":"u1","name":"Zara Khan","phone":"+9199"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var updated storage.Customer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	require.Equal(t, "Zara Khan", updated.Name)
	require.InDelta(t, 100, updated.TotalPurchases, 1e-9)

	require.Equal(t, http.StatusOK, ts.doJSON(t, http.MethodDelete, "/api/customers/"+zara.ID, "").Code)
	require.Equal(t, http.StatusNotFound, ts.doJSON(t, http.MethodGet, "/api/customers/"+zara.ID, "").Code)
	require.Equal(t, http.StatusNotFound, ts.doJSON(t, http.MethodDelete, "/api/customers/"+zara.ID, "").Code)
}

func TestProductCRUD(t *testing.T) {
	ts := newTestServer(t, true, Config{})

	w := ts.doJSON(t, http.MethodPost, "/api/products", `{"user_id":"u1","name":"Rice","price":50}`)
	require.Equal(t, http.StatusOK, w.Code)
	var rice storage.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rice))

	require.Equal(t, http.StatusBadRequest, ts.doJSON(t, http.MethodPost, "/api/products", `{"user_id":"u1","name":"Salt","price":-1}`).Code)
	require.Equal(t, http.StatusBadRequest, ts.doJSON(t, http.MethodPost, "/api/products", `{"user_id":"u1","name":"Salt"}`).Code)
	require.Equal(t, http.StatusOK, ts.doJSON(t, http.MethodPost, "/api/products", `{"user_id":"u1","name":"Free sample","price":0}`).Code)

	w = ts.doJSON(t, http.MethodPut, "/api/products/"+rice.ID, `{"user_id":"u1","name":"Rice","price":55}`)
	require.Equal(t, http.StatusOK, w.Code)
	var updated storage.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	require.InDelta(t, 55, updated.Price, 1e-9)

	w = ts.doJSON(t, http.MethodGet, "/api/products/search/ric?user_id=u1", "")
	var found []storage.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	require.Len(t, found, 1)

	require.Equal(t, http.StatusNotFound, ts.doJSON(t, http.MethodPut, "/api/products/missing", `{"user_id":"u1","name":"X","price":1}`).Code)
	require.Equal(t, http.StatusOK, ts.doJSON(t, http.MethodDelete, "/api/products/"+rice.ID, "").Code)
	require.Equal(t, http.StatusNotFound, ts.doJSON(t, http.MethodGet, "/api/products/"+rice.ID, "").Code)
}

func TestUpdateInvoice_PaidRefreshesCustomerDue(t *testing.T) {
	ts := newTestServer(t, true, Config{})
	ctx := context.Background()
	require.NoError(t, ts.store.CreateUser(ctx, &storage.User{ID: "u1", Phone: "+919876543210", Language: "en"}))
	require.NoError(t, ts.store.CreateCustomer(ctx, &storage.Customer{ID: "c1", UserID: "u1", Name: "Amit", TotalDue: 168}))
	ts.seedInvoice(t, storage.Invoice{ID: "i1", UserID: "u1", CustomerID: "c1", InvoiceNumber: "INV-1", Total: 118, AmountDue: 118, Status: storage.StatusUnpaid})
	ts.seedInvoice(t, storage.Invoice{ID: "i2", UserID: "u1", CustomerID: "c1", InvoiceNumber: "INV-2", Total: 50, AmountDue: 50, Status: storage.StatusUnpaid})

	w := ts.doJSON(t, http.MethodPut, "/api/invoices/i1", `{"status":"paid"}`)
	require.Equal(t, http.StatusOK, w.Code)

	inv, err := ts.store.GetInvoice(ctx, "i1")
	require.NoError(t, err)
	require.Equal(t, storage.StatusPaid, inv.Status)
	require.InDelta(t, 118, inv.AmountPaid, 1e-9)
	require.Zero(t, inv.AmountDue)
	require.Equal(t, storage.PaymentCompleted, inv.PaymentStatus)

	c, err := ts.store.GetCustomer(ctx, "c1")
	require.NoError(t, err)
	require.InDelta(t, 50, c.TotalDue, 1e-9)

	require.Equal(t, []string{"whatsapp:+919876543210"}, ts.messenger.to)
	require.Contains(t, ts.messenger.body[0], "INV-1")
}

func TestUpdateInvoice_PartialAmount(t *testing.T) {
	ts := newTestServer(t, true, Config{})
	ts.seedInvoice(t, storage.Invoice{ID: "i1", UserID: "u1", Total: 118, AmountDue: 118, Status: storage.StatusUnpaid})

	w := ts.doJSON(t, http.MethodPut, "/api/invoices/i1", `{"amount_paid":18}`)
	require.Equal(t, http.StatusOK, w.Code)

	inv, err := ts.store.GetInvoice(context.Background(), "i1")
	require.NoError(t, err)
	require.Equal(t, storage.StatusPartial, inv.Status)
	require.InDelta(t, 100, inv.AmountDue, 1e-9)
	require.Empty(t, ts.messenger.to)
}

func TestUpdateInvoice_OverpaymentCapsAtTotal(t *testing.T) {
	ts := newTestServer(t, true, Config{})
	ctx := context.Background()
	require.NoError(t, ts.store.CreateUser(ctx, &storage.User{ID: "u1", Phone: "+919876543210", Language: "en"}))
	ts.seedInvoice(t, storage.Invoice{ID: "i1", UserID: "u1", InvoiceNumber: "INV-1", Total: 118, AmountDue: 118, Status: storage.StatusUnpaid})

	w := ts.doJSON(t, http.MethodPut, "/api/invoices/i1", `{"amount_paid":200}`)
	require.Equal(t, http.StatusOK, w.Code)

	inv, err := ts.store.GetInvoice(ctx, "i1")
	require.NoError(t, err)
	require.Equal(t, storage.StatusPaid, inv.Status)
	require.InDelta(t, 118, inv.AmountPaid, 1e-9)
	require.InDelta(t, inv.Total-inv.AmountPaid, inv.AmountDue, 1e-9)
}

func TestUpdateInvoice_Validation(t *testing.T) {
	ts := newTestServer(t, true, Config{})
	require.Equal(t, http.StatusBadRequest, ts.doJSON(t, http.MethodPut, "/api/invoices/i1", `{}`).Code)
	require.Equal(t, http.StatusBadRequest, ts.doJSON(t, http.MethodPut, "/api/invoices/i1", `{"status":"refunded"}`).Code)
	require.Equal(t, http.StatusNotFound, ts.doJSON(t, http.MethodPut, "/api/invoices/i1", `{"status":"paid"}`).Code)
}

func TestInvoiceListGetDelete(t *testing.T) {
	ts := newTestServer(t, true, Config{})
	ts.seedInvoice(t, storage.Invoice{ID: "i1", UserID: "u1", InvoiceNumber: "INV-1", Date: time.Unix(100, 0)})
	ts.seedInvoice(t, storage.Invoice{ID: "i2", UserID: "u2", InvoiceNumber: "INV-2", Date: time.Unix(200, 0)})

	w := ts.doJSON(t, http.MethodGet, "/api/invoices", "")
	var all []storage.Invoice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all, 2)
	require.Equal(t, "i2", all[0].ID)

	w = ts.doJSON(t, http.MethodGet, "/api/invoices?user_id=u1", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all, 1)

	require.Equal(t, http.StatusOK, ts.doJSON(t, http.MethodGet, "/api/invoices/i1", "").Code)
	require.Equal(t, http.StatusOK, ts.doJSON(t, http.MethodDelete, "/api/invoices/i1", "").Code)
	require.Equal(t, http.StatusNotFound, ts.doJSON(t, http.MethodGet, "/api/invoices/i1", "").Code)
}

func TestInvoicePDF(t *testing.T) {
	ts := newTestServer(t, true, Config{})
	ts.seedInvoice(t, storage.Invoice{ID: "i1", InvoiceNumber: "INV-user-000-0001"})

	w := ts.doJSON(t, http.MethodGet, "/api/invoices/i1/pdf", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	require.Equal(t, "attachment; filename=invoice_INV-user-000-0001.pdf", w.Header().Get("Content-Disposition"))
	require.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))

	require.Equal(t, http.StatusNotFound, ts.doJSON(t, http.MethodGet, "/api/invoices/nope/pdf", "").Code)
}

func TestCreatePayment_TestMode(t *testing.T) {
	ts := newTestServer(t, true, Config{})
	ts.seedInvoice(t, storage.Invoice{ID: "i1", Total: 118})

	w := ts.doJSON(t, http.MethodPost, "/api/invoices/i1/create-payment", "")
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		PaymentLink string `json:"payment_link"`
		TestMode    bool   `json:"test_mode"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, "https://bill.example.com/api/test-payment/i1", out.PaymentLink)
	require.True(t, out.TestMode)

	inv, err := ts.store.GetInvoice(context.Background(), "i1")
	require.NoError(t, err)
	require.Equal(t, out.PaymentLink, inv.PaymentLink)
}

func TestTestPaymentFlow(t *testing.T) {
	ts := newTestServer(t, true, Config{})
	ts.seedInvoice(t, storage.Invoice{ID: "0123456789", InvoiceNumber: "INV-9", CustomerName: "<Amit>", Total: 118, AmountDue: 118, Status: storage.StatusUnpaid})

	w := ts.doJSON(t, http.MethodGet, "/api/test-payment/0123456789", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/html")
	require.Contains(t, w.Body.String(), "INV-9")
	require.Contains(t, w.Body.String(), "₹118.00")
	require.Contains(t, w.Body.String(), "&lt;Amit&gt;")

	w = ts.doJSON(t, http.MethodPost, "/api/test-payment-success/0123456789", "")
	require.Equal(t, http.StatusOK, w.Code)
	inv, err := ts.store.GetInvoice(context.Background(), "0123456789")
	require.NoError(t, err)
	require.Equal(t, storage.StatusPaid, inv.Status)
	require.Equal(t, "test_payment_01234567", inv.PaymentID)

	require.Equal(t, http.StatusNotFound, ts.doJSON(t, http.MethodGet, "/api/test-payment/missing", "").Code)
}

func TestTestPaymentSuccess_RefusedInLiveMode(t *testing.T) {
	ts := newTestServer(t, false, Config{})
	ts.seedInvoice(t, storage.Invoice{ID: "i1", Total: 118, AmountDue: 118})
	require.Equal(t, http.StatusForbidden, ts.doJSON(t, http.MethodPost, "/api/test-payment-success/i1", "").Code)
}

func TestPaymentCallback_VerifiesSignature(t *testing.T) {
	ts := newTestServer(t, false, Config{})
	ts.seedInvoice(t, storage.Invoice{ID: "i1", Total: 118, AmountDue: 118, Status: storage.StatusUnpaid})

	cb := payment.Callback{PaymentID: "pay_1", LinkID: "plink_1", ReferenceID: "i1", LinkStatus: "paid"}
	q := url.Values{
		"razorpay_payment_id":                {cb.PaymentID},
		"razorpay_payment_link_id":           {cb.LinkID},
		"razorpay_payment_link_reference_id": {cb.ReferenceID},
		"razorpay_payment_link_status":       {cb.LinkStatus},
		"razorpay_signature":                 {"forged"},
	}
	w := ts.doJSON(t, http.MethodGet, "/api/payment-callback?"+q.Encode(), "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	inv, err := ts.store.GetInvoice(context.Background(), "i1")
	require.NoError(t, err)
	require.Equal(t, storage.StatusUnpaid, inv.Status)

	q.Set("razorpay_signature", payment.Sign("rzp_secret", cb))
	w = ts.doJSON(t, http.MethodGet, "/api/payment-callback?"+q.Encode(), "")
	require.Equal(t, http.StatusOK, w.Code)

	inv, err = ts.store.GetInvoice(context.Background(), "i1")
	require.NoError(t, err)
	require.Equal(t, storage.StatusPaid, inv.Status)
	require.Equal(t, "pay_1", inv.PaymentID)
}

func TestPaymentCallback_MissingParams(t *testing.T) {
	ts := newTestServer(t, true, Config{})
	require.Equal(t, http.StatusBadRequest, ts.doJSON(t, http.MethodGet, "/api/payment-callback", "").Code)
}

func TestTwiML(t *testing.T) {
	out, err := TwiML(conversation.Reply{Messages: []string{"a", "line one\nline two"}})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(out), `<?xml version="1.0" encoding="UTF-8"?>`))
	require.Equal(t, []string{"a", "line one\nline two"}, parseTwiML(t, string(out)))

	out, err = TwiML(conversation.Reply{})
	require.NoError(t, err)
	require.Empty(t, parseTwiML(t, string(out)))
}
