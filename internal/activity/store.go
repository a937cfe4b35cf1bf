package activity

//go:generate mockgen -source=store.go -destination=mock_conn_provider_test.go -package=activity -exclude_interfaces=querier
//go:generate mockgen -destination=mock_tx_test.go -package=activity github.com/jackc/pgx/v5 Tx
//go:generate mockgen -destination=mock_rows_test.go -package=activity github.com/jackc/pgx/v5 Rows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/activitytracker/internal/telemetry/metrics"
	"github.com/2beens/activitytracker/internal/telemetry/tracing"
	"github.com/2beens/activitytracker/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
)

const (
	opSave                    = "save"
	opSaveAndReturnID         = "save and return id"
	opSaveWithTrackPoints     = "save with track points"
	opFindByID                = "find by id"
	opFindByIDWithTrackPoints = "find by id with track points"
	opListAll                 = "list all"
)

const (
	insertActivitySQL = `
		INSERT INTO activities (start_time, description, activity_type)
		VALUES ($1, $2, $3)`
	insertActivityReturningIDSQL = insertActivitySQL + `
		RETURNING id`
	insertTrackPointSQL = `
		INSERT INTO track_point (id, tp_time, lat, lon)
		VALUES ($1, $2, $3, $4)`
	selectActivityByIDSQL = `
		SELECT id, start_time, description, activity_type
		FROM activities
		WHERE id = $1`
	selectTrackPointsSQL = `
		SELECT tp_time, lat, lon
		FROM track_point
		WHERE id = $1`
	selectAllActivitiesSQL = `
		SELECT id, start_time, description, activity_type
		FROM activities`
)

// ConnProvider yields pooled connections and transactions.
// It is satisfied by *pgxpool.Pool.
type ConnProvider interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists activities and their track points.
type Store struct {
	db      ConnProvider
	metrics *metrics.Manager
}

// NewStore creates a store on top of db. With a nil metricsManager the
// store metrics are recorded but never exported.
func NewStore(db ConnProvider, metricsManager *metrics.Manager) *Store {
	if metricsManager == nil {
		metricsManager = metrics.NewDiscardManager()
	}
	return &Store{
		db:      db,
		metrics: metricsManager,
	}
}

// Save inserts a single activity row. The assigned id is not returned.
func (s *Store) Save(ctx context.Context, activity Activity) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.activity.save")
	defer s.finish(opSave, time.Now(), span, &err)

	if !activity.Type.Valid() {
		return fmt.Errorf("%s: %w: %d", opSave, ErrUnknownType, int(activity.Type))
	}

	if _, err := s.db.Exec(
		ctx,
		insertActivitySQL,
		activity.StartTime, activity.Description, activity.Type.String(),
	); err != nil {
		return storageError(opSave, "insert activity", err)
	}

	s.metrics.CounterActivitiesSaved.Inc()
	return nil
}

// SaveAndReturnID inserts a single activity row and returns a copy of the
// activity carrying the id assigned by the database.
func (s *Store) SaveAndReturnID(ctx context.Context, activity Activity) (_ Activity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.activity.save_and_return_id")
	defer s.finish(opSaveAndReturnID, time.Now(), span, &err)

	if !activity.Type.Valid() {
		return Activity{}, fmt.Errorf("%s: %w: %d", opSaveAndReturnID, ErrUnknownType, int(activity.Type))
	}

	id, err := insertActivity(ctx, s.db, activity)
	if err != nil {
		return Activity{}, storageError(opSaveAndReturnID, "insert activity", err)
	}
	span.SetAttributes(attribute.Int64("activity.id", id))

	s.metrics.CounterActivitiesSaved.Inc()
	activity.ID = id
	return activity, nil
}

// SaveWithTrackPoints inserts the activity and all of its track points in one
// transaction. Track points are validated and written in order; the first
// point out of bounds rolls back everything, including the activity row.
// The returned activity carries the committed id.
func (s *Store) SaveWithTrackPoints(ctx context.Context, activity Activity) (_ Activity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.activity.save_with_track_points")
	defer s.finish(opSaveWithTrackPoints, time.Now(), span, &err)
	span.SetAttributes(attribute.Int("activity.track_points", len(activity.TrackPoints)))

	if !activity.Type.Valid() {
		return Activity{}, fmt.Errorf("%s: %w: %d", opSaveWithTrackPoints, ErrUnknownType, int(activity.Type))
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Activity{}, storageError(opSaveWithTrackPoints, "begin tx", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			log.Warnf("activity store: rollback after [%s] failed: %s", err, rollbackErr)
			err = newStorageError(
				opSaveWithTrackPoints,
				multierr.Combine(err, fmt.Errorf("rollback: %w", rollbackErr)),
			)
			return
		}
		log.Debugf("activity store: rolled back [%s]", activity.Description)
	}()

	id, err := insertActivity(ctx, tx, activity)
	if err != nil {
		return Activity{}, storageError(opSaveWithTrackPoints, "insert activity", err)
	}
	span.SetAttributes(attribute.Int64("activity.id", id))

	for i, tp := range activity.TrackPoints {
		if err = tp.Validate(); err != nil {
			s.metrics.CounterValidationFailures.Inc()
			return Activity{}, &ValidationError{Index: i, Point: tp, Err: err}
		}
		if _, err = tx.Exec(ctx, insertTrackPointSQL, id, tp.Time, tp.Lat, tp.Lon); err != nil {
			return Activity{}, storageError(opSaveWithTrackPoints, fmt.Sprintf("insert track point #%d", i), err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return Activity{}, storageError(opSaveWithTrackPoints, "commit", err)
	}

	s.metrics.CounterActivitiesSaved.Inc()
	s.metrics.CounterTrackPointsSaved.Add(float64(len(activity.TrackPoints)))
	log.Debugf("activity store: saved activity [%d] with %d track points", id, len(activity.TrackPoints))

	activity.ID = id
	return activity, nil
}

// FindByID returns the activity without its track points.
func (s *Store) FindByID(ctx context.Context, id int64) (_ Activity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.activity.find_by_id")
	defer s.finish(opFindByID, time.Now(), span, &err)
	span.SetAttributes(attribute.Int64("activity.id", id))

	activity, err := findActivity(ctx, s.db, id)
	if err != nil {
		return Activity{}, wrapFindError(opFindByID, id, err)
	}

	return activity, nil
}

// FindByIDWithTrackPoints returns the activity with its track points in
// storage order. An activity without points gets an empty, non-nil track.
func (s *Store) FindByIDWithTrackPoints(ctx context.Context, id int64) (_ Activity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.activity.find_by_id_with_track_points")
	defer s.finish(opFindByIDWithTrackPoints, time.Now(), span, &err)
	span.SetAttributes(attribute.Int64("activity.id", id))

	// both reads go through one transaction, so one connection
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Activity{}, storageError(opFindByIDWithTrackPoints, "begin tx", err)
	}
	defer func() {
		// no-op after commit
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			log.Warnf("activity store: read tx rollback: %s", rollbackErr)
		}
	}()

	activity, err := findActivity(ctx, tx, id)
	if err != nil {
		return Activity{}, wrapFindError(opFindByIDWithTrackPoints, id, err)
	}

	activity.TrackPoints, err = findTrackPoints(ctx, tx, id)
	if err != nil {
		return Activity{}, storageError(opFindByIDWithTrackPoints, "track points", err)
	}
	span.SetAttributes(attribute.Int("activity.track_points", len(activity.TrackPoints)))

	if err = tx.Commit(ctx); err != nil {
		return Activity{}, storageError(opFindByIDWithTrackPoints, "commit", err)
	}

	return activity, nil
}

// ListAll returns every activity, without track points, in storage order.
func (s *Store) ListAll(ctx context.Context) (_ []Activity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.activity.list_all")
	defer s.finish(opListAll, time.Now(), span, &err)

	rows, err := s.db.Query(ctx, selectAllActivitiesSQL)
	if err != nil {
		return nil, storageError(opListAll, "query", err)
	}
	defer rows.Close()

	activities := make([]Activity, 0)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, storageError(opListAll, "rows scan", err)
		}
		activities = append(activities, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(opListAll, "rows", err)
	}

	span.SetAttributes(attribute.Int("activities.count", len(activities)))
	return activities, nil
}

// finish records the outcome of a store operation and ends its span.
func (s *Store) finish(op string, start time.Time, span trace.Span, errp *error) {
	err := *errp
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrStorage):
		outcome = "storage_failure"
		s.metrics.CounterStorageFailures.WithLabelValues(op).Inc()
		// reported by the caller
		log.Debugf("activity store: %s", err)
	default:
		outcome = "rejected"
	}

	s.metrics.HistogramStoreOpDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("store.outcome", outcome))
	tracing.EndSpanWithErrCheck(span, err)
}

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertActivity(ctx context.Context, q querier, activity Activity) (int64, error) {
	var id int64
	err := q.QueryRow(
		ctx,
		insertActivityReturningIDSQL,
		activity.StartTime, activity.Description, activity.Type.String(),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNoGeneratedID
		}
		return 0, err
	}
	return id, nil
}

func findActivity(ctx context.Context, q querier, id int64) (Activity, error) {
	return scanActivity(q.QueryRow(ctx, selectActivityByIDSQL, id))
}

func scanActivity(row pgx.Row) (Activity, error) {
	var activity Activity
	var typeName string
	if err := row.Scan(&activity.ID, &activity.StartTime, &activity.Description, &typeName); err != nil {
		return Activity{}, err
	}

	activityType, err := ParseType(typeName)
	if err != nil {
		return Activity{}, err
	}
	activity.Type = activityType
	return activity, nil
}

func findTrackPoints(ctx context.Context, q querier, activityID int64) ([]TrackPoint, error) {
	rows, err := q.Query(ctx, selectTrackPointsSQL, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trackPoints := make([]TrackPoint, 0)
	for rows.Next() {
		var tp TrackPoint
		if err := rows.Scan(&tp.Time, &tp.Lat, &tp.Lon); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		trackPoints = append(trackPoints, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return trackPoints, nil
}

func wrapFindError(op string, id int64, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s [%d]: %w", op, id, ErrNotFound)
	}
	return storageError(op, "query activity", err)
}

func storageError(op, step string, err error) *StorageError {
	return newStorageError(op, fmt.Errorf("%s%s: %w", step, pgErrorHint(err), err))
}

func pgErrorHint(err error) string {
	switch {
	case pkg.IsUniqueViolationError(err):
		return " [unique violation]"
	case pkg.IsForeignKeyViolationError(err):
		return " [foreign key violation]"
	case pkg.IsCheckViolationError(err):
		return " [check violation]"
	case pkg.IsUndefinedTableError(err):
		return " [undefined table, schema not migrated?]"
	default:
		return ""
	}
}
