package customization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/app/observability/metrics"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/itinerary"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository is the itinerary store: the source of truth for both variants.
type Repository interface {
	FetchItinerary(ctx context.Context, aiGeneratedID string) (*types.ItineraryView, error)
	// FetchOrInitializeCustomized is idempotent: a second call returns the same customized copy.
	FetchOrInitializeCustomized(ctx context.Context, aiGeneratedID string) (*types.Itinerary, error)
	// PersistCustomized replaces summary and every day's fields and activity list.
	PersistCustomized(ctx context.Context, customizedID, summary string, days []types.Day) error
	UpdateDay(ctx context.Context, dayID string, fields types.DayFields) error
	UpdateActivity(ctx context.Context, dayID, activityID string, activity types.Activity) error
	// AddActivity returns the stored activity, whose id may differ from the one sent.
	AddActivity(ctx context.Context, dayID string, activity types.Activity) (*types.Activity, error)
	RemoveActivity(ctx context.Context, dayID, activityID string) error
	// ReorderActivities stores the complete order of a day's activities.
	ReorderActivities(ctx context.Context, dayID string, orderedIDs []string) error
	DeleteItinerary(ctx context.Context, aiGeneratedID string) error
	// SaveOriginal stores a freshly generated itinerary and fills in its ids.
	SaveOriginal(ctx context.Context, it *types.Itinerary) error
}

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the part of *pgxpool.Pool the repository needs.
type DB interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	selectItinerary = `
        SELECT id::text, ai_generated_id, variant, destination, duration_days, summary, updated_at
        FROM itineraries`

	selectDays = `
        SELECT id::text, day_number, theme, description, user_modified
        FROM itinerary_days
        WHERE itinerary_id = $1
        ORDER BY day_number`

	selectActivities = `
        SELECT a.day_id::text, a.activity_id, a.name, a.location, a.time_slot,
               a.duration_minutes, a.cost, a.activity_type, a.optional, a.user_modified
        FROM itinerary_activities a
        JOIN itinerary_days d ON d.id = a.day_id
        WHERE d.itinerary_id = $1
        ORDER BY d.day_number, a.position`

	insertActivity = `
        INSERT INTO itinerary_activities
            (day_id, activity_id, position, name, location, time_slot, duration_minutes, cost, activity_type, optional, user_modified)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	// customizedDays limits granular edits to days of the customized variant.
	customizedDays = `
        SELECT d.id FROM itinerary_days d
        JOIN itineraries i ON i.id = d.itinerary_id
        WHERE i.variant = 'customized'`

	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// RepositoryImpl stores itineraries in PostgreSQL.
type RepositoryImpl struct {
	logger *slog.Logger
	db     DB
}

func NewRepositoryImpl(db DB, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{logger: logger, db: db}
}

func (r *RepositoryImpl) FetchItinerary(ctx context.Context, aiGeneratedID string) (*types.ItineraryView, error) {
	ctx, span := otel.Tracer("CustomizationRepo").Start(ctx, "FetchItinerary", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itineraries"),
		attribute.String("itinerary.ai_generated_id", aiGeneratedID),
	))
	defer span.End()
	l := r.logger.With(slog.String("method", "FetchItinerary"), slog.String("aiGeneratedID", aiGeneratedID))
	start := time.Now()

	variants, err := r.queryVariants(ctx, aiGeneratedID)
	if err != nil {
		r.fail(ctx, span, "FetchItinerary", start, err)
		l.ErrorContext(ctx, "Failed to query itinerary variants", slog.Any("error", err))
		return nil, fmt.Errorf("failed to fetch itinerary: %w", err)
	}
	if len(variants) == 0 {
		span.SetStatus(codes.Error, "not found")
		return nil, fmt.Errorf("itinerary %s: %w", aiGeneratedID, types.ErrNotFound)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range variants {
		it := &variants[i]
		g.Go(func() error {
			return r.loadDays(gctx, r.db, it)
		})
	}
	if err := g.Wait(); err != nil {
		r.fail(ctx, span, "FetchItinerary", start, err)
		l.ErrorContext(ctx, "Failed to load itinerary days", slog.Any("error", err))
		return nil, fmt.Errorf("failed to fetch itinerary days: %w", err)
	}

	view := &types.ItineraryView{}
	foundOriginal := false
	for _, it := range variants {
		switch it.Variant {
		case types.VariantOriginal:
			view.Original = it
			foundOriginal = true
		case types.VariantCustomized:
			c := it
			view.Customized = &c
			view.HasCustomized = true
		}
	}
	if !foundOriginal {
		span.SetStatus(codes.Error, "original missing")
		return nil, fmt.Errorf("original of itinerary %s: %w", aiGeneratedID, types.ErrNotFound)
	}

	r.observe(ctx, "FetchItinerary", start)
	l.DebugContext(ctx, "Fetched itinerary", slog.Bool("hasCustomized", view.HasCustomized))
	span.SetStatus(codes.Ok, "Itinerary fetched")
	return view, nil
}

func (r *RepositoryImpl) FetchOrInitializeCustomized(ctx context.Context, aiGeneratedID string) (*types.Itinerary, error) {
	ctx, span := otel.Tracer("CustomizationRepo").Start(ctx, "FetchOrInitializeCustomized", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itineraries"),
		attribute.String("itinerary.ai_generated_id", aiGeneratedID),
	))
	defer span.End()
	l := r.logger.With(slog.String("method", "FetchOrInitializeCustomized"), slog.String("aiGeneratedID", aiGeneratedID))
	start := time.Now()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.fail(ctx, span, "FetchOrInitializeCustomized", start, err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	customizedID, err := r.customizedID(ctx, tx, aiGeneratedID)
	if errors.Is(err, pgx.ErrNoRows) {
		l.InfoContext(ctx, "No customized copy yet, seeding from original")
		customizedID, err = r.initializeCustomized(ctx, tx, aiGeneratedID)
	}
	if err != nil {
		r.fail(ctx, span, "FetchOrInitializeCustomized", start, err)
		l.ErrorContext(ctx, "Failed to resolve customized itinerary", slog.Any("error", err))
		return nil, fmt.Errorf("failed to initialize customized itinerary: %w", err)
	}

	it, err := r.loadItinerary(ctx, tx, customizedID)
	if err != nil {
		r.fail(ctx, span, "FetchOrInitializeCustomized", start, err)
		return nil, fmt.Errorf("failed to load customized itinerary: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.fail(ctx, span, "FetchOrInitializeCustomized", start, err)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.observe(ctx, "FetchOrInitializeCustomized", start)
	span.SetAttributes(attribute.String("itinerary.customized_id", customizedID))
	span.SetStatus(codes.Ok, "Customized itinerary ready")
	return it, nil
}

func (r *RepositoryImpl) customizedID(ctx context.Context, q querier, aiGeneratedID string) (string, error) {
	var id string
	err := q.QueryRow(ctx,
		`SELECT id::text FROM itineraries WHERE ai_generated_id = $1 AND variant = 'customized'`,
		aiGeneratedID).Scan(&id)
	return id, err
}

// initializeCustomized copies the original, its days and activities into a new
// customized itinerary. A concurrent initializer that wins the unique constraint
// is detected and its copy returned instead.
func (r *RepositoryImpl) initializeCustomized(ctx context.Context, tx pgx.Tx, aiGeneratedID string) (string, error) {
	var originalID string
	err := tx.QueryRow(ctx,
		`SELECT id::text FROM itineraries WHERE ai_generated_id = $1 AND variant = 'original'`,
		aiGeneratedID).Scan(&originalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("original of itinerary %s: %w", aiGeneratedID, types.ErrNotFound)
	}
	if err != nil {
		return "", err
	}

	newID := uuid.New()
	tag, err := tx.Exec(ctx, `
        INSERT INTO itineraries (id, ai_generated_id, variant, user_id, destination, duration_days, summary)
        SELECT $1, ai_generated_id, 'customized', user_id, destination, duration_days, summary
        FROM itineraries WHERE id = $2
        ON CONFLICT (ai_generated_id, variant) DO NOTHING`, newID, originalID)
	if err != nil {
		return "", fmt.Errorf("failed to insert customized itinerary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.customizedID(ctx, tx, aiGeneratedID)
	}

	rows, err := tx.Query(ctx, `SELECT id::text FROM itinerary_days WHERE itinerary_id = $1 ORDER BY day_number`, originalID)
	if err != nil {
		return "", fmt.Errorf("failed to query original days: %w", err)
	}
	var originalDays []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return "", fmt.Errorf("failed to scan original day: %w", err)
		}
		originalDays = append(originalDays, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to read original days: %w", err)
	}

	for _, originalDayID := range originalDays {
		dayID := uuid.New()
		if _, err := tx.Exec(ctx, `
            INSERT INTO itinerary_days (id, itinerary_id, day_number, theme, description)
            SELECT $1, $2, day_number, theme, description FROM itinerary_days WHERE id = $3`,
			dayID, newID, originalDayID); err != nil {
			return "", fmt.Errorf("failed to copy day: %w", err)
		}
		if _, err := tx.Exec(ctx, `
            INSERT INTO itinerary_activities
                (day_id, activity_id, position, name, location, time_slot, duration_minutes, cost, activity_type, optional)
            SELECT $1, activity_id, position, name, location, time_slot, duration_minutes, cost, activity_type, optional
            FROM itinerary_activities WHERE day_id = $2`,
			dayID, originalDayID); err != nil {
			return "", fmt.Errorf("failed to copy activities: %w", err)
		}
	}
	return newID.String(), nil
}

func (r *RepositoryImpl) PersistCustomized(ctx context.Context, customizedID, summary string, days []types.Day) error {
	ctx, span := otel.Tracer("CustomizationRepo").Start(ctx, "PersistCustomized", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itineraries, itinerary_days, itinerary_activities"),
		attribute.String("itinerary.customized_id", customizedID),
		attribute.Int("itinerary.days", len(days)),
	))
	defer span.End()
	l := r.logger.With(slog.String("method", "PersistCustomized"), slog.String("customizedID", customizedID))
	start := time.Now()

	id, err := parseID(customizedID)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.fail(ctx, span, "PersistCustomized", start, err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE itineraries SET summary = $2, updated_at = now() WHERE id = $1 AND variant = 'customized'`,
		id, summary)
	if err != nil {
		r.fail(ctx, span, "PersistCustomized", start, err)
		return fmt.Errorf("failed to update itinerary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not found")
		return fmt.Errorf("customized itinerary %s: %w", customizedID, types.ErrNotFound)
	}

	for _, d := range days {
		dayID, err := parseID(d.ID)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
            UPDATE itinerary_days SET theme = $3, description = $4, user_modified = $5
            WHERE id = $1 AND itinerary_id = $2`,
			dayID, id, d.Theme, d.Description, d.UserModified)
		if err != nil {
			r.fail(ctx, span, "PersistCustomized", start, err)
			return fmt.Errorf("failed to update day %d: %w", d.DayNumber, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("day %s of itinerary %s: %w", d.ID, customizedID, types.ErrNotFound)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM itinerary_activities WHERE day_id = $1`, dayID); err != nil {
			r.fail(ctx, span, "PersistCustomized", start, err)
			return fmt.Errorf("failed to clear activities of day %d: %w", d.DayNumber, err)
		}
		for pos, a := range d.Activities {
			if _, err := tx.Exec(ctx, insertActivity, activityArgs(dayID, pos, a)...); err != nil {
				r.fail(ctx, span, "PersistCustomized", start, err)
				return fmt.Errorf("failed to insert activity %s: %w", a.ID, mapPgError(err))
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.fail(ctx, span, "PersistCustomized", start, err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	r.observe(ctx, "PersistCustomized", start)
	l.DebugContext(ctx, "Customized itinerary persisted", slog.Int("days", len(days)))
	span.SetStatus(codes.Ok, "Persisted")
	return nil
}

func (r *RepositoryImpl) UpdateDay(ctx context.Context, dayID string, fields types.DayFields) error {
	ctx, span := otel.Tracer("CustomizationRepo").Start(ctx, "UpdateDay", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itinerary_days"),
		attribute.String("day.id", dayID),
	))
	defer span.End()
	start := time.Now()

	id, err := parseID(dayID)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
        UPDATE itinerary_days
        SET theme = COALESCE($2, theme), description = COALESCE($3, description), user_modified = true
        WHERE id = $1 AND id IN (` + customizedDays + `)`, id, fields.Theme, fields.Description)
	if err != nil {
		r.fail(ctx, span, "UpdateDay", start, err)
		return fmt.Errorf("failed to update day: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("day %s: %w", dayID, types.ErrNotFound)
	}
	r.observe(ctx, "UpdateDay", start)
	span.SetStatus(codes.Ok, "Day updated")
	return nil
}

func (r *RepositoryImpl) UpdateActivity(ctx context.Context, dayID, activityID string, a types.Activity) error {
	ctx, span := otel.Tracer("CustomizationRepo").Start(ctx, "UpdateActivity", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itinerary_activities"),
		attribute.String("day.id", dayID),
		attribute.String("activity.id", activityID),
	))
	defer span.End()
	start := time.Now()

	id, err := parseID(dayID)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
        UPDATE itinerary_activities
        SET name = $3, location = $4, time_slot = $5, duration_minutes = $6, cost = $7,
            activity_type = $8, optional = $9, user_modified = true
        WHERE day_id = $1 AND activity_id = $2 AND day_id IN (` + customizedDays + `)`,
		id, activityID, a.Name, a.Location, string(a.TimeSlot), a.DurationMinutes, a.Cost, a.ActivityType, a.Optional)
	if err != nil {
		r.fail(ctx, span, "UpdateActivity", start, err)
		return fmt.Errorf("failed to update activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("activity %s in day %s: %w", activityID, dayID, types.ErrNotFound)
	}
	r.observe(ctx, "UpdateActivity", start)
	span.SetStatus(codes.Ok, "Activity updated")
	return nil
}

// AddActivity stores a at the end of the day under a server-assigned id.
func (r *RepositoryImpl) AddActivity(ctx context.Context, dayID string, a types.Activity) (*types.Activity, error) {
	ctx, span := otel.Tracer("CustomizationRepo").Start(ctx, "AddActivity", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itinerary_activities"),
		attribute.String("day.id", dayID),
	))
	defer span.End()
	start := time.Now()

	id, err := parseID(dayID)
	if err != nil {
		return nil, err
	}
	a.ID = uuid.NewString()
	a.UserModified = true
	tag, err := r.db.Exec(ctx, `
        INSERT INTO itinerary_activities
            (day_id, activity_id, position, name, location, time_slot, duration_minutes, cost, activity_type, optional, user_modified)
        SELECT $1, $2, COALESCE(MAX(position) + 1, 0), $3, $4, $5, $6, $7, $8, $9, true
        FROM itinerary_activities WHERE day_id = $1
        HAVING $1 IN (` + customizedDays + `)`,
		id, a.ID, a.Name, a.Location, string(a.TimeSlot), a.DurationMinutes, a.Cost, a.ActivityType, a.Optional)
	if err != nil {
		r.fail(ctx, span, "AddActivity", start, err)
		return nil, fmt.Errorf("failed to add activity to day %s: %w", dayID, mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("day %s: %w", dayID, types.ErrNotFound)
	}
	r.observe(ctx, "AddActivity", start)
	span.SetAttributes(attribute.String("activity.id", a.ID))
	span.SetStatus(codes.Ok, "Activity added")
	return &a, nil
}

func (r *RepositoryImpl) RemoveActivity(ctx context.Context, dayID, activityID string) error {
	ctx, span := otel.Tracer("CustomizationRepo").Start(ctx, "RemoveActivity", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itinerary_activities"),
		attribute.String("day.id", dayID),
		attribute.String("activity.id", activityID),
	))
	defer span.End()
	start := time.Now()

	id, err := parseID(dayID)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
        DELETE FROM itinerary_activities
        WHERE day_id = $1 AND activity_id = $2 AND day_id IN (` + customizedDays + `)`, id, activityID)
	if err != nil {
		r.fail(ctx, span, "RemoveActivity", start, err)
		return fmt.Errorf("failed to remove activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("activity %s in day %s: %w", activityID, dayID, types.ErrNotFound)
	}
	r.observe(ctx, "RemoveActivity", start)
	span.SetStatus(codes.Ok, "Activity removed")
	return nil
}

func (r *RepositoryImpl) ReorderActivities(ctx context.Context, dayID string, orderedIDs []string) error {
	ctx, span := otel.Tracer("CustomizationRepo").Start(ctx, "ReorderActivities", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itinerary_activities"),
		attribute.String("day.id", dayID),
		attribute.Int("activities", len(orderedIDs)),
	))
	defer span.End()
	l := r.logger.With(slog.String("method", "ReorderActivities"), slog.String("dayID", dayID))
	start := time.Now()

	id, err := parseID(dayID)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.fail(ctx, span, "ReorderActivities", start, err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
        SELECT activity_id FROM itinerary_activities
        WHERE day_id = $1 AND day_id IN (` + customizedDays + `)
        FOR UPDATE`, id)
	if err != nil {
		r.fail(ctx, span, "ReorderActivities", start, err)
		return fmt.Errorf("failed to lock activities: %w", err)
	}
	var current []string
	for rows.Next() {
		var activityID string
		if err := rows.Scan(&activityID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan activity id: %w", err)
		}
		current = append(current, activityID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read activity ids: %w", err)
	}

	if err := itinerary.CheckPermutation(current, orderedIDs); err != nil {
		l.WarnContext(ctx, "Rejected reorder that is not a permutation", slog.Any("error", err))
		span.SetStatus(codes.Error, "invalid order")
		return err
	}

	if _, err := tx.Exec(ctx, `
        UPDATE itinerary_activities a
        SET position = o.pos - 1
        FROM unnest($2::text[]) WITH ORDINALITY AS o(activity_id, pos)
        WHERE a.day_id = $1 AND a.activity_id = o.activity_id
          AND a.day_id IN (` + customizedDays + `)`, id, orderedIDs); err != nil {
		r.fail(ctx, span, "ReorderActivities", start, err)
		return fmt.Errorf("failed to update positions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.fail(ctx, span, "ReorderActivities", start, err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	r.observe(ctx, "ReorderActivities", start)
	span.SetStatus(codes.Ok, "Reordered")
	return nil
}

// DeleteItinerary removes both variants; days and activities cascade.
func (r *RepositoryImpl) DeleteItinerary(ctx context.Context, aiGeneratedID string) error {
	ctx, span := otel.Tracer("CustomizationRepo").Start(ctx, "DeleteItinerary", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itineraries"),
		attribute.String("itinerary.ai_generated_id", aiGeneratedID),
	))
	defer span.End()
	start := time.Now()

	tag, err := r.db.Exec(ctx, `DELETE FROM itineraries WHERE ai_generated_id = $1`, aiGeneratedID)
	if err != nil {
		r.fail(ctx, span, "DeleteItinerary", start, err)
		return fmt.Errorf("failed to delete itinerary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("itinerary %s: %w", aiGeneratedID, types.ErrNotFound)
	}
	r.observe(ctx, "DeleteItinerary", start)
	span.SetStatus(codes.Ok, "Deleted")
	return nil
}

func (r *RepositoryImpl) SaveOriginal(ctx context.Context, it *types.Itinerary) error {
	ctx, span := otel.Tracer("CustomizationRepo").Start(ctx, "SaveOriginal", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "itineraries, itinerary_days, itinerary_activities"),
		attribute.Int("itinerary.days", len(it.Days)),
	))
	defer span.End()
	l := r.logger.With(slog.String("method", "SaveOriginal"))
	start := time.Now()

	id := uuid.New()
	if it.AIGeneratedID == "" {
		it.AIGeneratedID = uuid.NewString()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.fail(ctx, span, "SaveOriginal", start, err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
        INSERT INTO itineraries (id, ai_generated_id, variant, destination, duration_days, summary)
        VALUES ($1, $2, 'original', $3, $4, $5)`,
		id, it.AIGeneratedID, it.Destination, it.DurationDays, it.Summary); err != nil {
		r.fail(ctx, span, "SaveOriginal", start, err)
		return fmt.Errorf("failed to insert itinerary: %w", mapPgError(err))
	}

	days := make([]types.Day, len(it.Days))
	copy(days, it.Days)
	for i := range days {
		dayID := uuid.New()
		if _, err := tx.Exec(ctx, `
            INSERT INTO itinerary_days (id, itinerary_id, day_number, theme, description)
            VALUES ($1, $2, $3, $4, $5)`,
			dayID, id, days[i].DayNumber, days[i].Theme, days[i].Description); err != nil {
			r.fail(ctx, span, "SaveOriginal", start, err)
			return fmt.Errorf("failed to insert day %d: %w", days[i].DayNumber, mapPgError(err))
		}
		for pos, a := range days[i].Activities {
			if _, err := tx.Exec(ctx, insertActivity, activityArgs(dayID, pos, a)...); err != nil {
				r.fail(ctx, span, "SaveOriginal", start, err)
				return fmt.Errorf("failed to insert activity %s: %w", a.ID, mapPgError(err))
			}
		}
		days[i].ID = dayID.String()
	}

	if err := tx.Commit(ctx); err != nil {
		r.fail(ctx, span, "SaveOriginal", start, err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	it.ID = id.String()
	it.Variant = types.VariantOriginal
	it.Days = days
	r.observe(ctx, "SaveOriginal", start)
	l.InfoContext(ctx, "Original itinerary stored", slog.String("aiGeneratedID", it.AIGeneratedID))
	span.SetStatus(codes.Ok, "Saved")
	return nil
}

func (r *RepositoryImpl) queryVariants(ctx context.Context, aiGeneratedID string) ([]types.Itinerary, error) {
	rows, err := r.db.Query(ctx, selectItinerary+` WHERE ai_generated_id = $1`, aiGeneratedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Itinerary
	for rows.Next() {
		it, err := scanItinerary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *RepositoryImpl) loadItinerary(ctx context.Context, q querier, id string) (*types.Itinerary, error) {
	it, err := scanItinerary(q.QueryRow(ctx, selectItinerary+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("itinerary %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadDays(ctx, q, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// loadDays fills it.Days in day_number order, each with its activities in position order.
func (r *RepositoryImpl) loadDays(ctx context.Context, q querier, it *types.Itinerary) error {
	rows, err := q.Query(ctx, selectDays, it.ID)
	if err != nil {
		return fmt.Errorf("failed to query days: %w", err)
	}
	days := []types.Day{}
	index := map[string]int{}
	for rows.Next() {
		var d types.Day
		if err := rows.Scan(&d.ID, &d.DayNumber, &d.Theme, &d.Description, &d.UserModified); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan day: %w", err)
		}
		d.Activities = []types.Activity{}
		index[d.ID] = len(days)
		days = append(days, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read days: %w", err)
	}

	rows, err = q.Query(ctx, selectActivities, it.ID)
	if err != nil {
		return fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			dayID, slot string
			a           types.Activity
		)
		if err := rows.Scan(&dayID, &a.ID, &a.Name, &a.Location, &slot,
			&a.DurationMinutes, &a.Cost, &a.ActivityType, &a.Optional, &a.UserModified); err != nil {
			return fmt.Errorf("failed to scan activity: %w", err)
		}
		a.TimeSlot = types.TimeSlot(slot)
		i, ok := index[dayID]
		if !ok {
			continue
		}
		days[i].Activities = append(days[i].Activities, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read activities: %w", err)
	}

	it.Days = days
	*it = itinerary.Recompute(*it)
	return nil
}

func scanItinerary(row pgx.Row) (types.Itinerary, error) {
	var (
		it      types.Itinerary
		variant string
	)
	err := row.Scan(&it.ID, &it.AIGeneratedID, &variant, &it.Destination, &it.DurationDays, &it.Summary, &it.UpdatedAt)
	it.Variant = types.Variant(variant)
	return it, err
}

func activityArgs(dayID uuid.UUID, pos int, a types.Activity) []any {
	return []any{dayID, a.ID, pos, a.Name, a.Location, string(a.TimeSlot), a.DurationMinutes, a.Cost, a.ActivityType, a.Optional, a.UserModified}
}

// parseID rejects ids that cannot exist in a uuid column before touching the database.
func parseID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("id %q: %w", id, types.ErrNotFound)
	}
	return u, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", types.ErrNotFound, pgErr.Message)
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", types.ErrValidation, pgErr.Message)
		}
	}
	return err
}

func (r *RepositoryImpl) observe(ctx context.Context, op string, start time.Time) {
	metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("db.operation", op)))
}

func (r *RepositoryImpl) fail(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	attrs := metric.WithAttributes(attribute.String("db.operation", op))
	m := metrics.Get()
	m.DbQueryErrorsTotal.Add(ctx, 1, attrs)
	m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
}
