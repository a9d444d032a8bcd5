package myinvois

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Nombres de operación usados en métricas y logs.
const (
	CallSubmit  = "submit"
	CallDetails = "details"
	CallCancel  = "cancel"
)

// CallObserver recibe la duración y el resultado de cada llamada a LHDN.
type CallObserver interface {
	ObserveAuthorityCall(op string, elapsed time.Duration, err error)
}

// ResilienceConfig límites por minuto y parámetros del circuit breaker.
type ResilienceConfig struct {
	SubmitRPM        int
	QueryRPM         int
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// ResilientSubmitter decora un Submitter con rate limiting del lado cliente y circuit breaker.
// Con el circuito abierto la llamada falla de inmediato, y el servicio la trata como falla de transporte.
type ResilientSubmitter struct {
	next     Submitter
	breaker  *gobreaker.CircuitBreaker
	submitRL *rate.Limiter
	queryRL  *rate.Limiter
	observer CallObserver
}

// NewResilientSubmitter envuelve next. observer puede ser nil.
func NewResilientSubmitter(next Submitter, cfg ResilienceConfig, observer CallObserver, log zerolog.Logger) *ResilientSubmitter {
	if cfg.SubmitRPM <= 0 {
		cfg.SubmitRPM = 100
	}
	if cfg.QueryRPM <= 0 {
		cfg.QueryRPM = 300
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	threshold := cfg.FailureThreshold

	settings := gobreaker.Settings{
		Name:        "myinvois",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Un 4xx es un error del request, no una caída del servicio.
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.Temporary()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("myinvois: cambio de estado del circuit breaker")
		},
	}

	return &ResilientSubmitter{
		next:     next,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		submitRL: newPerMinuteLimiter(cfg.SubmitRPM),
		queryRL:  newPerMinuteLimiter(cfg.QueryRPM),
		observer: observer,
	}
}

func (r *ResilientSubmitter) SubmitDocuments(ctx context.Context, docs []SubmitDocument) (*SubmissionResponse, error) {
	out, err := r.call(ctx, CallSubmit, r.submitRL, func() (any, error) {
		return r.next.SubmitDocuments(ctx, docs)
	})
	if err != nil {
		return nil, err
	}
	return out.(*SubmissionResponse), nil
}

func (r *ResilientSubmitter) GetDocumentDetails(ctx context.Context, uuid string) (*DocumentDetails, error) {
	out, err := r.call(ctx, CallDetails, r.queryRL, func() (any, error) {
		return r.next.GetDocumentDetails(ctx, uuid)
	})
	if err != nil {
		return nil, err
	}
	return out.(*DocumentDetails), nil
}

func (r *ResilientSubmitter) CancelDocument(ctx context.Context, uuid, reason string) error {
	_, err := r.call(ctx, CallCancel, r.submitRL, func() (any, error) {
		return nil, r.next.CancelDocument(ctx, uuid, reason)
	})
	return err
}

// BreakerState estado actual del circuito (closed, half-open, open).
func (r *ResilientSubmitter) BreakerState() string {
	return r.breaker.State().String()
}

// ── helpers privados ─────────────────────────────────────────────────────────

func (r *ResilientSubmitter) call(ctx context.Context, op string, rl *rate.Limiter, fn func() (any, error)) (any, error) {
	start := time.Now()
	if err := rl.Wait(ctx); err != nil {
		err = fmt.Errorf("myinvois: rate limit %s: %w", op, err)
		r.observe(op, start, err)
		return nil, err
	}
	out, err := r.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("myinvois: circuito abierto, %s no enviado: %w", op, err)
	}
	r.observe(op, start, err)
	return out, err
}

func (r *ResilientSubmitter) observe(op string, start time.Time, err error) {
	if r.observer != nil {
		r.observer.ObserveAuthorityCall(op, time.Since(start), err)
	}
}

func newPerMinuteLimiter(rpm int) *rate.Limiter {
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60), burst)
}
