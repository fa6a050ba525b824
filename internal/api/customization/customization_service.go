package customization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/app/observability/metrics"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/autosave"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/itinerary"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	// ViewItinerary is the read path. The customized variant is shown when it
	// exists, unless preferred asks for the original.
	ViewItinerary(ctx context.Context, aiGeneratedID string, preferred types.Variant) (*types.ItineraryResponse, error)
	// Customize fetches or initializes the customized copy and opens an editing session on it.
	Customize(ctx context.Context, userID, aiGeneratedID string) (*Session, error)
	Session(ctx context.Context, userID, customizedID string) (*Session, error)
	CloseSession(ctx context.Context, userID, customizedID string) error
	DeleteItinerary(ctx context.Context, aiGeneratedID string) error
	// Shutdown flushes every open session.
	Shutdown(ctx context.Context) error
}

type SessionConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
	Autosave        autosave.Config
}

type ServiceImpl struct {
	logger   *slog.Logger
	repo     Repository
	sessions *cache.Cache
	cfg      SessionConfig
}

func NewServiceImpl(repo Repository, cfg SessionConfig, logger *slog.Logger) *ServiceImpl {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.Autosave.SaveTimeout <= 0 {
		cfg.Autosave.SaveTimeout = autosave.DefaultConfig().SaveTimeout
	}
	s := &ServiceImpl{
		logger:   logger,
		repo:     repo,
		sessions: cache.New(cfg.TTL, cfg.CleanupInterval),
		cfg:      cfg,
	}
	s.sessions.OnEvicted(s.onEvicted)
	return s
}

func sessionKey(userID, customizedID string) string {
	return userID + ":" + customizedID
}

func (s *ServiceImpl) ViewItinerary(ctx context.Context, aiGeneratedID string, preferred types.Variant) (*types.ItineraryResponse, error) {
	ctx, span := otel.Tracer("CustomizationService").Start(ctx, "ViewItinerary", trace.WithAttributes(
		attribute.String("itinerary.ai_generated_id", aiGeneratedID),
		attribute.String("itinerary.preferred_variant", string(preferred)),
	))
	defer span.End()
	l := s.logger.With(slog.String("method", "ViewItinerary"), slog.String("aiGeneratedID", aiGeneratedID))

	view, err := s.repo.FetchItinerary(ctx, aiGeneratedID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch itinerary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		if errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", types.ErrLoadFailed, err)
	}

	resp, err := Resolve(*view, preferred)
	if err != nil {
		l.ErrorContext(ctx, "Stored itinerary has invalid days", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid itinerary")
		return nil, fmt.Errorf("%w: %v", types.ErrLoadFailed, err)
	}
	l.DebugContext(ctx, "Itinerary resolved", slog.String("shown", string(resp.Shown)), slog.Bool("hasCustomized", resp.HasCustomized))
	span.SetAttributes(attribute.String("itinerary.shown_variant", string(resp.Shown)))
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// Resolve picks the variant to display: customized when present, unless the
// original is explicitly preferred. Days of the chosen variant must have distinct
// positive day numbers.
func Resolve(view types.ItineraryView, preferred types.Variant) (*types.ItineraryResponse, error) {
	hasCustomized := view.HasCustomized && view.Customized != nil
	chosen, shown := view.Original, types.VariantOriginal
	if hasCustomized && preferred != types.VariantOriginal {
		chosen, shown = *view.Customized, types.VariantCustomized
	}
	days, err := types.NormalizeDays(chosen.Days)
	if err != nil {
		return nil, err
	}
	chosen.Days = days
	chosen = itinerary.Recompute(chosen)

	resp := &types.ItineraryResponse{
		Itinerary:     chosen,
		Totals:        itinerary.TripTotals(chosen),
		Shown:         shown,
		HasCustomized: hasCustomized,
	}
	if hasCustomized {
		resp.CustomizedID = view.Customized.ID
	}
	return resp, nil
}

func (s *ServiceImpl) Customize(ctx context.Context, userID, aiGeneratedID string) (*Session, error) {
	ctx, span := otel.Tracer("CustomizationService").Start(ctx, "Customize", trace.WithAttributes(
		attribute.String("itinerary.ai_generated_id", aiGeneratedID),
	))
	defer span.End()
	l := s.logger.With(slog.String("method", "Customize"), slog.String("aiGeneratedID", aiGeneratedID), slog.String("userID", userID))

	it, err := s.repo.FetchOrInitializeCustomized(ctx, aiGeneratedID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch or initialize customized itinerary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch-or-initialize failed")
		return nil, fmt.Errorf("failed to customize itinerary: %w", err)
	}
	if it.AIGeneratedID == "" {
		it.AIGeneratedID = aiGeneratedID
	}
	it.Variant = types.VariantCustomized
	span.SetAttributes(attribute.String("itinerary.customized_id", it.ID))

	key := sessionKey(userID, it.ID)
	if existing, ok := s.sessions.Get(key); ok {
		sess := existing.(*Session)
		sess.touch(ctx)
		s.sessions.Set(key, sess, cache.DefaultExpiration)
		l.DebugContext(ctx, "Reusing open session", slog.String("customizedID", it.ID))
		return sess, nil
	}

	sess, err := newSession(s.repo, userID, *it, s.cfg.Autosave, s.logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid itinerary")
		return nil, fmt.Errorf("%w: failed to open session: %v", types.ErrLoadFailed, err)
	}
	sess.touch(ctx)
	if err := s.sessions.Add(key, sess, cache.DefaultExpiration); err != nil {
		// another request opened it first
		sess.abandon()
		if existing, ok := s.sessions.Get(key); ok {
			return existing.(*Session), nil
		}
		return nil, fmt.Errorf("failed to register session: %w", err)
	}
	metrics.Get().ActiveSessions.Add(ctx, 1)
	l.InfoContext(ctx, "Editing session opened", slog.String("customizedID", it.ID))
	span.SetStatus(codes.Ok, "")
	return sess, nil
}

// Session returns the open session and extends its lifetime.
func (s *ServiceImpl) Session(ctx context.Context, userID, customizedID string) (*Session, error) {
	key := sessionKey(userID, customizedID)
	v, ok := s.sessions.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrSessionNotFound, customizedID)
	}
	sess := v.(*Session)
	sess.touch(ctx)
	s.sessions.Set(key, sess, cache.DefaultExpiration)
	return sess, nil
}

func (s *ServiceImpl) CloseSession(ctx context.Context, userID, customizedID string) error {
	l := s.logger.With(slog.String("method", "CloseSession"), slog.String("customizedID", customizedID))
	sess, err := s.Session(ctx, userID, customizedID)
	if err != nil {
		return err
	}
	err = sess.Close(ctx)
	s.sessions.Delete(sessionKey(userID, customizedID))
	if err != nil {
		l.ErrorContext(ctx, "Session closed with unsaved changes", slog.Any("error", err))
		return err
	}
	l.InfoContext(ctx, "Editing session closed")
	return nil
}

// DeleteItinerary drops every open session on the itinerary without saving, then deletes it.
func (s *ServiceImpl) DeleteItinerary(ctx context.Context, aiGeneratedID string) error {
	ctx, span := otel.Tracer("CustomizationService").Start(ctx, "DeleteItinerary", trace.WithAttributes(
		attribute.String("itinerary.ai_generated_id", aiGeneratedID),
	))
	defer span.End()
	l := s.logger.With(slog.String("method", "DeleteItinerary"), slog.String("aiGeneratedID", aiGeneratedID))

	for key, item := range s.sessions.Items() {
		sess := item.Object.(*Session)
		if sess.AIGeneratedID() != aiGeneratedID {
			continue
		}
		sess.abandon()
		s.sessions.Delete(key)
	}

	if err := s.repo.DeleteItinerary(ctx, aiGeneratedID); err != nil {
		l.ErrorContext(ctx, "Failed to delete itinerary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return fmt.Errorf("failed to delete itinerary: %w", err)
	}
	l.InfoContext(ctx, "Itinerary deleted")
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *ServiceImpl) Shutdown(ctx context.Context) error {
	items := s.sessions.Items()
	g, gctx := errgroup.WithContext(ctx)
	for _, item := range items {
		sess := item.Object.(*Session)
		g.Go(func() error {
			return sess.Close(gctx)
		})
	}
	err := g.Wait()
	// Delete rather than Flush so OnEvicted runs for each session.
	for key := range items {
		s.sessions.Delete(key)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Some sessions failed to flush on shutdown", slog.Any("error", err))
		return err
	}
	s.logger.InfoContext(ctx, "All editing sessions flushed", slog.Int("count", len(items)))
	return nil
}

// onEvicted runs for expirations and explicit deletes. Close is a no-op for
// sessions that were already closed or abandoned.
func (s *ServiceImpl) onEvicted(key string, v interface{}) {
	sess, ok := v.(*Session)
	if !ok {
		return
	}
	metrics.Get().ActiveSessions.Add(context.Background(), -1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Autosave.SaveTimeout+time.Second)
		defer cancel()
		if err := sess.Close(ctx); err != nil {
			s.logger.WarnContext(ctx, "Evicted session failed to flush", slog.String("session", key), slog.Any("error", err))
		}
	}()
}
