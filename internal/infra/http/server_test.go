//go:build !integration

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"telegram-subscription-checkout/internal/domain"
	"telegram-subscription-checkout/internal/domain/model"
	"telegram-subscription-checkout/internal/domain/ports/adapter"
	"telegram-subscription-checkout/internal/infra/metrics"
	"telegram-subscription-checkout/internal/usecase"
)

type stubActivationUC struct {
	result usecase.ApplyResult
	err    error
	got    *usecase.PaymentNotice
}

func (s *stubActivationUC) Apply(_ context.Context, n usecase.PaymentNotice) (usecase.ApplyResult, error) {
	s.got = &n
	return s.result, s.err
}

type stubSubscriptionUC struct {
	handles []string
	err     error
	calls   int
}

func (s *stubSubscriptionUC) Sweep(context.Context, time.Time) ([]string, error) {
	s.calls++
	return s.handles, s.err
}

func (s *stubSubscriptionUC) Find(context.Context, string) (*model.Subscriber, error) {
	return nil, domain.ErrNotFound
}

type stubGateway struct {
	sigOK bool
}

func (g *stubGateway) Name() string { return "stub" }
func (g *stubGateway) CreatePayment(context.Context, float64, string, string, string) (*adapter.CreatedPayment, error) {
	return nil, domain.ErrProviderUnavailable
}
func (g *stubGateway) GetStatus(context.Context, string) (string, error) { return "", nil }
func (g *stubGateway) VerifySignature([]byte, string) bool               { return g.sigOK }

func newTestServer(act *stubActivationUC, sub *stubSubscriptionUC, gw *stubGateway) *Server {
	logger := zerolog.New(io.Discard)
	return NewServer(0, act, sub, gw, &logger)
}

// webhookCount reads the current value of payment_webhooks_total for a result
// label from the default registry; 0 when the series does not exist yet.
func webhookCount(t *testing.T, result string) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "payment_webhooks_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func postWebhook(t *testing.T, srv *Server, body, sig string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/payment", bytes.NewBufferString(body))
	if sig != "" {
		req.Header.Set(signatureHeader, sig)
	}
	rr := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rr, req)
	return rr
}

func TestWebhook(t *testing.T) {
	validBody := `{"order_id":"01ABC","payment_status":"finished","price_amount":60.0,"pay_amount":0.00095,"actually_paid":0.00095,"outcome_amount":0.00094}`

	t.Run("missing signature is rejected before decoding", func(t *testing.T) {
		act := &stubActivationUC{result: usecase.ApplyApplied}
		rr := postWebhook(t, newTestServer(act, &stubSubscriptionUC{}, &stubGateway{sigOK: true}), validBody, "")

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
		if act.got != nil {
			t.Error("reconciler must not run for an unsigned request")
		}
	})

	t.Run("bad signature is rejected and counted", func(t *testing.T) {
		metrics.MustRegister()
		before := webhookCount(t, "rejected")

		act := &stubActivationUC{result: usecase.ApplyApplied}
		rr := postWebhook(t, newTestServer(act, &stubSubscriptionUC{}, &stubGateway{sigOK: false}), validBody, "deadbeef")

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
		if act.got != nil {
			t.Error("reconciler must not run for a forged request")
		}
		if after := webhookCount(t, "rejected"); after != before+1 {
			t.Errorf("expected rejected counter to advance by 1, got %v -> %v", before, after)
		}
	})

	t.Run("malformed payload after a valid signature is a 400", func(t *testing.T) {
		act := &stubActivationUC{result: usecase.ApplyApplied}
		rr := postWebhook(t, newTestServer(act, &stubSubscriptionUC{}, &stubGateway{sigOK: true}), `{"broken`, "deadbeef")

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("valid notice is applied and acknowledged", func(t *testing.T) {
		act := &stubActivationUC{result: usecase.ApplyApplied}
		rr := postWebhook(t, newTestServer(act, &stubSubscriptionUC{}, &stubGateway{sigOK: true}), validBody, "deadbeef")

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if act.got == nil {
			t.Fatal("expected the notice to reach the reconciler")
		}
		if act.got.OrderID != "01ABC" || act.got.Status != "finished" {
			t.Errorf("unexpected notice: %+v", act.got)
		}
		if act.got.PaidAmount != 0.00095 {
			t.Errorf("expected actually_paid to win, got %v", act.got.PaidAmount)
		}
		if act.got.QuotedAmount != 0.00095 {
			t.Errorf("expected pay_amount forwarded as the quote, got %v", act.got.QuotedAmount)
		}
		var resp map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp["result"] != "applied" {
			t.Errorf("result = %q, want applied", resp["result"])
		}
	})

	t.Run("falls back to outcome_amount when actually_paid is absent", func(t *testing.T) {
		act := &stubActivationUC{result: usecase.ApplyApplied}
		body := `{"order_id":"01ABC","payment_status":"finished","pay_amount":0.00095,"outcome_amount":0.00094}`
		postWebhook(t, newTestServer(act, &stubSubscriptionUC{}, &stubGateway{sigOK: true}), body, "deadbeef")

		if act.got == nil || act.got.PaidAmount != 0.00094 {
			t.Fatalf("expected outcome_amount fallback, got %+v", act.got)
		}
	})

	t.Run("unknown order is acknowledged so the provider stops retrying", func(t *testing.T) {
		act := &stubActivationUC{result: usecase.ApplyUnknownOrder, err: domain.ErrOrderNotFound}
		rr := postWebhook(t, newTestServer(act, &stubSubscriptionUC{}, &stubGateway{sigOK: true}), validBody, "deadbeef")

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 ack, got %d", rr.Code)
		}
		var resp map[string]string
		_ = json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["result"] != "unknown_order" {
			t.Errorf("result = %q, want unknown_order", resp["result"])
		}
	})

	t.Run("underpayment is acknowledged without activation", func(t *testing.T) {
		act := &stubActivationUC{result: usecase.ApplyAmountMismatch, err: domain.ErrAmountMismatch}
		rr := postWebhook(t, newTestServer(act, &stubSubscriptionUC{}, &stubGateway{sigOK: true}), validBody, "deadbeef")

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 ack, got %d", rr.Code)
		}
	})

	t.Run("store failure is a 500 so the provider redelivers", func(t *testing.T) {
		act := &stubActivationUC{err: domain.ErrOperationFailed}
		rr := postWebhook(t, newTestServer(act, &stubSubscriptionUC{}, &stubGateway{sigOK: true}), validBody, "deadbeef")

		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rr.Code)
		}
	})
}

func TestSweepEndpoint(t *testing.T) {
	t.Run("reports the expired handles", func(t *testing.T) {
		sub := &stubSubscriptionUC{handles: []string{"@lapsed", "@overdue"}}
		srv := newTestServer(&stubActivationUC{}, sub, &stubGateway{})

		req := httptest.NewRequest(http.MethodPost, "/sweep", nil)
		rr := httptest.NewRecorder()
		srv.server.Handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if sub.calls != 1 {
			t.Errorf("expected one sweep, got %d", sub.calls)
		}
		var resp struct {
			Count   int      `json:"count"`
			Handles []string `json:"handles"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Count != 2 || len(resp.Handles) != 2 {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("sweep failure is a 500", func(t *testing.T) {
		sub := &stubSubscriptionUC{err: domain.ErrOperationFailed}
		srv := newTestServer(&stubActivationUC{}, sub, &stubGateway{})

		req := httptest.NewRequest(http.MethodPost, "/sweep", nil)
		rr := httptest.NewRecorder()
		srv.server.Handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rr.Code)
		}
	})
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&stubActivationUC{}, &stubSubscriptionUC{}, &stubGateway{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
