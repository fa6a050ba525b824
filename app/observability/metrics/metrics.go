package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	AutosaveAttemptsTotal   metric.Int64Counter
	AutosaveFailuresTotal   metric.Int64Counter
	AutosaveDurationSeconds metric.Float64Histogram
	ReorderCommitsTotal     metric.Int64Counter
	ReorderRollbacksTotal   metric.Int64Counter
	ActiveSessions          metric.Int64UpDownCounter
	UpstreamDurationSeconds metric.Float64Histogram
	DbQueryDurationSeconds  metric.Float64Histogram
	DbQueryErrorsTotal      metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the instruments once, from the global MeterProvider.
// Call it after the provider is installed so the instruments are exported.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("itinerary-sync")
		var err error
		m := &AppMetrics{}

		m.AutosaveAttemptsTotal, err = meter.Int64Counter(
			"autosave_attempts_total",
			metric.WithDescription("Total number of autosave persistence calls issued"),
			metric.WithUnit("{call}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create autosave_attempts_total: %v", err)
		}

		m.AutosaveFailuresTotal, err = meter.Int64Counter(
			"autosave_failures_total",
			metric.WithDescription("Total number of failed autosave persistence calls"),
			metric.WithUnit("{call}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create autosave_failures_total: %v", err)
		}

		m.AutosaveDurationSeconds, err = meter.Float64Histogram(
			"autosave_duration_seconds",
			metric.WithDescription("Duration of autosave persistence calls in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create autosave_duration_seconds: %v", err)
		}

		m.ReorderCommitsTotal, err = meter.Int64Counter(
			"reorder_commits_total",
			metric.WithDescription("Total number of activity reorders sent to the itinerary store"),
			metric.WithUnit("{reorder}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create reorder_commits_total: %v", err)
		}

		m.ReorderRollbacksTotal, err = meter.Int64Counter(
			"reorder_rollbacks_total",
			metric.WithDescription("Total number of optimistic reorders discarded after a failed persist"),
			metric.WithUnit("{reorder}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create reorder_rollbacks_total: %v", err)
		}

		m.ActiveSessions, err = meter.Int64UpDownCounter(
			"editing_sessions_active",
			metric.WithDescription("Number of open itinerary editing sessions"),
			metric.WithUnit("{session}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create editing_sessions_active: %v", err)
		}

		m.UpstreamDurationSeconds, err = meter.Float64Histogram(
			"upstream_request_duration_seconds",
			metric.WithDescription("Duration of requests to the upstream itinerary API in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create upstream_request_duration_seconds: %v", err)
		}

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the AppMetrics instance. Without a prior InitAppMetrics call the
// instruments are bound to whatever global provider is installed (a no-op one in tests).
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
