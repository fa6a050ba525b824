package customization

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	appMiddleware "github.com/QuangZuy11/TravelBookingSystem-FE-sub003/app/middleware"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/app/observability/metrics"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/config"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/itinerary"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"
)

var _ Repository = (*UpstreamClient)(nil)

const maxUpstreamBody = 4 << 20

// UpstreamClient talks to the travel-booking REST backend that owns itineraries.
// Calls are made with the bearer token found in the context.
type UpstreamClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

type upstreamEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type persistBody struct {
	Summary string      `json:"summary"`
	Days    []types.Day `json:"days"`
}

type reorderBody struct {
	ActivityIDs []string `json:"activity_ids"`
}

func NewUpstreamClient(cfg config.UpstreamConfig, logger *slog.Logger) *UpstreamClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &UpstreamClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

func (c *UpstreamClient) FetchItinerary(ctx context.Context, aiGeneratedID string) (*types.ItineraryView, error) {
	var view types.ItineraryView
	if err := c.do(ctx, "FetchItinerary", http.MethodGet, "/ai-itineraries/"+url.PathEscape(aiGeneratedID), nil, &view); err != nil {
		return nil, err
	}
	view.Original = itinerary.Recompute(view.Original)
	if view.Customized != nil {
		customized := itinerary.Recompute(*view.Customized)
		view.Customized = &customized
	}
	view.HasCustomized = view.HasCustomized || view.Customized != nil
	return &view, nil
}

func (c *UpstreamClient) FetchOrInitializeCustomized(ctx context.Context, aiGeneratedID string) (*types.Itinerary, error) {
	var it types.Itinerary
	path := "/ai-itineraries/" + url.PathEscape(aiGeneratedID) + "/customize"
	if err := c.do(ctx, "FetchOrInitializeCustomized", http.MethodPost, path, nil, &it); err != nil {
		return nil, err
	}
	it = itinerary.Recompute(it)
	return &it, nil
}

func (c *UpstreamClient) PersistCustomized(ctx context.Context, customizedID, summary string, days []types.Day) error {
	path := "/ai-itineraries/customized/" + url.PathEscape(customizedID)
	return c.do(ctx, "PersistCustomized", http.MethodPut, path, persistBody{Summary: summary, Days: days}, nil)
}

func (c *UpstreamClient) UpdateDay(ctx context.Context, dayID string, fields types.DayFields) error {
	return c.do(ctx, "UpdateDay", http.MethodPut, "/ai-itineraries/days/"+url.PathEscape(dayID), fields, nil)
}

func (c *UpstreamClient) UpdateActivity(ctx context.Context, dayID, activityID string, a types.Activity) error {
	path := "/ai-itineraries/days/" + url.PathEscape(dayID) + "/activities/" + url.PathEscape(activityID)
	return c.do(ctx, "UpdateActivity", http.MethodPut, path, a, nil)
}

func (c *UpstreamClient) AddActivity(ctx context.Context, dayID string, a types.Activity) (*types.Activity, error) {
	var created types.Activity
	path := "/ai-itineraries/days/" + url.PathEscape(dayID) + "/activities"
	if err := c.do(ctx, "AddActivity", http.MethodPost, path, a, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		// backend acknowledged without echoing the activity
		created = a
	}
	return &created, nil
}

func (c *UpstreamClient) RemoveActivity(ctx context.Context, dayID, activityID string) error {
	path := "/ai-itineraries/days/" + url.PathEscape(dayID) + "/activities/" + url.PathEscape(activityID)
	return c.do(ctx, "RemoveActivity", http.MethodDelete, path, nil, nil)
}

func (c *UpstreamClient) ReorderActivities(ctx context.Context, dayID string, orderedIDs []string) error {
	path := "/ai-itineraries/days/" + url.PathEscape(dayID) + "/reorder"
	return c.do(ctx, "ReorderActivities", http.MethodPut, path, reorderBody{ActivityIDs: orderedIDs}, nil)
}

func (c *UpstreamClient) DeleteItinerary(ctx context.Context, aiGeneratedID string) error {
	return c.do(ctx, "DeleteItinerary", http.MethodDelete, "/ai-itineraries/"+url.PathEscape(aiGeneratedID), nil, nil)
}

func (c *UpstreamClient) SaveOriginal(ctx context.Context, it *types.Itinerary) error {
	var stored types.Itinerary
	if err := c.do(ctx, "SaveOriginal", http.MethodPost, "/ai-itineraries", it, &stored); err != nil {
		return err
	}
	*it = itinerary.Recompute(stored)
	return nil
}

// do performs one rate-limited call and decodes the envelope's data into out.
// 404 maps to ErrNotFound, 400/422 to ErrValidation, any other failure to ErrNetwork.
func (c *UpstreamClient) do(ctx context.Context, op, method, path string, body, out any) error {
	ctx, span := otel.Tracer("UpstreamClient").Start(ctx, op, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	))
	defer span.End()
	l := c.logger.With(slog.String("method", op), slog.String("path", path))

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.WarnContext(ctx, "Upstream call failed", slog.Any("error", err))
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail(fmt.Errorf("%w: rate limiter: %v", types.ErrNetwork, err))
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fail(fmt.Errorf("failed to encode %s request: %w", op, err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fail(fmt.Errorf("failed to build %s request: %w", op, err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := appMiddleware.GetTokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	metrics.Get().UpstreamDurationSeconds.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("upstream.operation", op),
		attribute.Int("http.response.status_code", status),
	))
	if err != nil {
		return fail(fmt.Errorf("%w: %s %s: %v", types.ErrNetwork, method, path, err))
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return fail(fmt.Errorf("%w: reading %s response: %v", types.ErrNetwork, op, err))
	}

	var env upstreamEnvelope
	decodeErr := json.Unmarshal(raw, &env)

	if status < 200 || status >= 300 {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		switch status {
		case http.StatusNotFound:
			return fail(fmt.Errorf("%s: %w: %s", op, types.ErrNotFound, msg))
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return fail(fmt.Errorf("%s: %w: %s", op, types.ErrValidation, msg))
		default:
			return fail(fmt.Errorf("%w: %s returned %d: %s", types.ErrNetwork, op, status, msg))
		}
	}

	if out == nil {
		span.SetStatus(codes.Ok, "")
		return nil
	}
	if decodeErr != nil {
		return fail(fmt.Errorf("%w: malformed %s response: %v", types.ErrNetwork, op, decodeErr))
	}
	if !env.Success {
		return fail(fmt.Errorf("%w: %s unsuccessful: %s", types.ErrNetwork, op, env.Message))
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fail(fmt.Errorf("%w: malformed %s payload: %v", types.ErrNetwork, op, err))
		}
	}
	span.SetStatus(codes.Ok, "")
	l.DebugContext(ctx, "Upstream call succeeded", slog.Duration("latency", time.Since(start)))
	return nil
}
