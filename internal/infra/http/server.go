package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-subscription-checkout/internal/domain"
	"telegram-subscription-checkout/internal/domain/ports/adapter"
	"telegram-subscription-checkout/internal/infra/metrics"
	"telegram-subscription-checkout/internal/usecase"
)

const signatureHeader = "X-Signature"

// Server hosts the provider webhook, the on-demand sweep trigger, health and
// metrics.
type Server struct {
	activationUC usecase.ActivationUseCase
	subUC        usecase.SubscriptionUseCase
	gateway      adapter.PaymentGateway
	server       *http.Server
	log          *zerolog.Logger
}

func NewServer(port int, activationUC usecase.ActivationUseCase, subUC usecase.SubscriptionUseCase, gateway adapter.PaymentGateway, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	s := &Server{activationUC: activationUC, subUC: subUC, gateway: gateway, log: &l}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/webhook/payment", s.handleWebhook)
	r.Post("/sweep", s.handleSweep)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ipnPayload is the provider's push notification body. Only the fields the
// reconciler acts on are decoded; the signature covers the raw bytes.
// pay_amount, actually_paid and outcome_amount are all denominated in the pay
// currency (price_amount is the fiat figure and plays no part in reconciling).
type ipnPayload struct {
	OrderID       string  `json:"order_id"`
	PaymentStatus string  `json:"payment_status"`
	PayAmount     float64 `json:"pay_amount"`
	ActuallyPaid  float64 `json:"actually_paid"`
	OutcomeAmount float64 `json:"outcome_amount"`
}

// handleWebhook runs the gates in order: authenticate, filter non-final
// statuses, resolve the order, apply idempotently. A rejected gate mutates
// nothing.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	sig := r.Header.Get(signatureHeader)
	if sig == "" || !s.gateway.VerifySignature(body, sig) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("webhook signature rejected")
		metrics.IncWebhook("rejected")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var p ipnPayload
	if err := json.Unmarshal(body, &p); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	paid := p.ActuallyPaid
	if paid == 0 {
		paid = p.OutcomeAmount
	}
	result, err := s.activationUC.Apply(ctx, usecase.PaymentNotice{
		OrderID:      p.OrderID,
		Status:       p.PaymentStatus,
		PaidAmount:   paid,
		QuotedAmount: p.PayAmount,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrAmountMismatch):
			// Logged and counted inside the usecase; acknowledged so the
			// provider stops redelivering. Nothing was mutated.
			s.writeJSON(w, http.StatusOK, map[string]string{"result": string(result)})
			return
		}
		s.log.Error().Err(err).Str("order_id", p.OrderID).Msg("webhook apply failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"result": string(result)})
}

// handleSweep triggers an expiry sweep on demand and reports the affected set.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	handles, err := s.subUC.Sweep(ctx, time.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("manual sweep failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(handles),
		"handles": handles,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug().Err(err).Msg("write response failed")
	}
}
