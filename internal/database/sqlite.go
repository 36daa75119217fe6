package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rr-sync/internal/database/migrations"
	"rr-sync/internal/database/sqlc"
	"rr-sync/internal/model"
	"rr-sync/internal/sw"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Sequence names in the sequences table.
const (
	favoriteSequence    = "favorite"
	placeholderSequence = "review_placeholder"
)

// PlaceholderPrefix namespaces locally assigned review ids away from server ids.
const PlaceholderPrefix = "pending-"

// SQLiteStore implements sw.Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	queries *sqlc.Queries
	clock   sw.Clock
	path    string
}

// NewSQLiteStore opens the store at path, which can be a file path or
// ":memory:". The schema is not touched; call Migrate or apply Schema.
// A nil clock uses the real clock.
func NewSQLiteStore(path string, clock sw.Clock) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	s := NewSQLiteStoreFromDB(db, clock)
	s.path = path
	return s, nil
}

// NewSQLiteStoreFromDB wraps an existing connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteStoreFromDB(db *sql.DB, clock sw.Clock) *SQLiteStore {
	if clock == nil {
		clock = sw.RealClock{}
	}
	return &SQLiteStore{
		db:      db,
		queries: sqlc.New(db),
		clock:   clock,
	}
}

// OpenConnection opens and configures a SQLite connection.
// path can be a file path or ":memory:" for an in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writers, and keeps a ":memory:" database
	// alive for the lifetime of the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Restaurant operations

func (s *SQLiteStore) ListRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	rows, err := s.queries.ListRestaurants(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing restaurants: %w", err)
	}
	out := make([]model.Restaurant, 0, len(rows))
	for _, row := range rows {
		r, err := restaurantFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *SQLiteStore) GetRestaurant(ctx context.Context, id int64) (*model.Restaurant, error) {
	row, err := s.queries.GetRestaurant(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting restaurant %d: %w", id, err)
	}
	r, err := restaurantFromRow(row)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertRestaurants writes all records in one transaction. A pending
// favorite recorded before the restaurant was first stored is applied here.
func (s *SQLiteStore) UpsertRestaurants(ctx context.Context, restaurants []model.Restaurant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)
	for _, r := range restaurants {
		params, err := restaurantParams(r)
		if err != nil {
			return err
		}

		pending, err := qtx.GetPendingFavorite(ctx, r.ID)
		switch {
		case err == nil:
			params.IsFavorite = sql.NullBool{Bool: pending.IsFavorite, Valid: true}
			params.FavoriteState = string(model.PendingLocal)
			params.FavoriteSeq = pending.Seq
		case errors.Is(err, sql.ErrNoRows):
		default:
			return fmt.Errorf("checking pending favorite for %d: %w", r.ID, err)
		}

		if err := qtx.UpsertRestaurant(ctx, params); err != nil {
			return fmt.Errorf("upserting restaurant %d: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetFavoriteLocal(ctx context.Context, restaurantID int64, value bool) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)
	seq, err := qtx.NextSequenceValue(ctx, favoriteSequence)
	if err != nil {
		return 0, fmt.Errorf("allocating favorite sequence: %w", err)
	}
	if _, err := qtx.SetRestaurantFavorite(ctx, sqlc.SetRestaurantFavoriteParams{
		IsFavorite:  sql.NullBool{Bool: value, Valid: true},
		FavoriteSeq: seq,
		ID:          restaurantID,
	}); err != nil {
		return 0, fmt.Errorf("setting favorite for %d: %w", restaurantID, err)
	}
	// Queued before the PUT is attempted; ConfirmFavorite drops it on success.
	now := s.clock.Now()
	if err := qtx.UpsertPendingFavorite(ctx, sqlc.UpsertPendingFavoriteParams{
		RestaurantID: restaurantID,
		IsFavorite:   value,
		Seq:          seq,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return 0, fmt.Errorf("queueing favorite for %d: %w", restaurantID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return seq, nil
}

func (s *SQLiteStore) ConfirmFavorite(ctx context.Context, restaurantID int64, seq int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)
	if _, err := qtx.DeletePendingFavoritesThrough(ctx, sqlc.DeletePendingFavoritesThroughParams{
		RestaurantID: restaurantID,
		Seq:          seq,
	}); err != nil {
		return fmt.Errorf("deleting pending favorites for %d: %w", restaurantID, err)
	}
	// Matches nothing when a newer local write has happened since seq.
	if _, err := qtx.ConfirmRestaurantFavorite(ctx, sqlc.ConfirmRestaurantFavoriteParams{
		ID:          restaurantID,
		FavoriteSeq: seq,
	}); err != nil {
		return fmt.Errorf("confirming favorite for %d: %w", restaurantID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Pending favorite operations

func (s *SQLiteStore) PutPendingFavorite(ctx context.Context, pending model.PendingFavorite) error {
	now := s.clock.Now()
	createdAt := pending.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	err := s.queries.UpsertPendingFavorite(ctx, sqlc.UpsertPendingFavoriteParams{
		RestaurantID: pending.RestaurantID,
		IsFavorite:   pending.IsFavorite,
		Seq:          pending.Seq,
		CreatedAt:    createdAt,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("storing pending favorite for %d: %w", pending.RestaurantID, err)
	}
	return nil
}

func (s *SQLiteStore) GetPendingFavorite(ctx context.Context, restaurantID int64) (*model.PendingFavorite, error) {
	row, err := s.queries.GetPendingFavorite(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting pending favorite for %d: %w", restaurantID, err)
	}
	p := pendingFavoriteFromRow(row)
	return &p, nil
}

func (s *SQLiteStore) ListPendingFavorites(ctx context.Context) ([]model.PendingFavorite, error) {
	rows, err := s.queries.ListPendingFavorites(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pending favorites: %w", err)
	}
	out := make([]model.PendingFavorite, len(rows))
	for i, row := range rows {
		out[i] = pendingFavoriteFromRow(row)
	}
	return out, nil
}

// Review operations

func (s *SQLiteStore) ListReviews(ctx context.Context) ([]model.Review, error) {
	rows, err := s.queries.ListReviews(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	return reviewsFromRows(rows), nil
}

func (s *SQLiteStore) ListReviewsByRestaurant(ctx context.Context, restaurantID int64) ([]model.Review, error) {
	rows, err := s.queries.ListReviewsByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("listing reviews for restaurant %d: %w", restaurantID, err)
	}
	return reviewsFromRows(rows), nil
}

func (s *SQLiteStore) UpsertReviews(ctx context.Context, reviews []model.Review) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)
	for _, r := range reviews {
		if err := qtx.UpsertReview(ctx, s.reviewParams(r)); err != nil {
			return fmt.Errorf("upserting review %d: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddPendingReview(ctx context.Context, input model.ReviewInput, createdAt time.Time) (model.Review, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Review{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)
	n, err := qtx.NextSequenceValue(ctx, placeholderSequence)
	if err != nil {
		return model.Review{}, fmt.Errorf("allocating placeholder id: %w", err)
	}
	row, err := qtx.InsertPendingReview(ctx, sqlc.InsertPendingReviewParams{
		PlaceholderID: sql.NullString{String: fmt.Sprintf("%s%d", PlaceholderPrefix, n), Valid: true},
		RestaurantID:  input.RestaurantID,
		Name:          input.Name,
		Rating:        int64(input.Rating),
		Comments:      input.Comments,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	})
	if err != nil {
		return model.Review{}, fmt.Errorf("inserting pending review: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Review{}, fmt.Errorf("committing transaction: %w", err)
	}
	return reviewFromRow(row), nil
}

func (s *SQLiteStore) ListPendingReviews(ctx context.Context) ([]model.Review, error) {
	rows, err := s.queries.ListReviewsByState(ctx, string(model.PendingLocal))
	if err != nil {
		return nil, fmt.Errorf("listing pending reviews: %w", err)
	}
	return reviewsFromRows(rows), nil
}

func (s *SQLiteStore) ReplacePendingReview(ctx context.Context, placeholderID string, confirmed model.Review) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)
	if _, err := qtx.DeleteReviewByPlaceholder(ctx, sql.NullString{String: placeholderID, Valid: true}); err != nil {
		return fmt.Errorf("deleting review %s: %w", placeholderID, err)
	}
	if err := qtx.UpsertReview(ctx, s.reviewParams(confirmed)); err != nil {
		return fmt.Errorf("storing review %d: %w", confirmed.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Worker lifecycle history

func (s *SQLiteStore) CreateWorkerEvent(ctx context.Context, kind, detail string) (*model.WorkerEvent, error) {
	row, err := s.queries.InsertWorkerEvent(ctx, sqlc.InsertWorkerEventParams{
		Kind:      kind,
		Detail:    detail,
		StartedAt: s.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating worker event: %w", err)
	}
	ev := workerEventFromRow(row)
	return &ev, nil
}

func (s *SQLiteStore) FinishWorkerEvent(ctx context.Context, id int64, status string) error {
	err := s.queries.UpdateWorkerEventFinished(ctx, sqlc.UpdateWorkerEventFinishedParams{
		FinishedAt: sql.NullTime{Time: s.clock.Now(), Valid: true},
		Status:     status,
		ID:         id,
	})
	if err != nil {
		return fmt.Errorf("finishing worker event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListWorkerEvents(ctx context.Context, limit int) ([]model.WorkerEvent, error) {
	rows, err := s.queries.ListWorkerEvents(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing worker events: %w", err)
	}
	out := make([]model.WorkerEvent, len(rows))
	for i, row := range rows {
		out[i] = workerEventFromRow(row)
	}
	return out, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteStore) Path() string {
	return s.path
}

// Migrate brings the schema up to the latest version.
func (s *SQLiteStore) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Conversions between sqlc rows and model types

func restaurantFromRow(row sqlc.Restaurant) (model.Restaurant, error) {
	r := model.Restaurant{
		ID:            row.ID,
		Name:          row.Name,
		Neighborhood:  row.Neighborhood,
		Photograph:    row.Photograph,
		Address:       row.Address,
		LatLng:        model.LatLng{Lat: row.Lat, Lng: row.Lng},
		CuisineType:   row.CuisineType,
		FavoriteState: model.SyncState(row.FavoriteState),
		FavoriteSeq:   row.FavoriteSeq,
	}
	if row.IsFavorite.Valid {
		r.IsFavorite = model.FavoriteOf(row.IsFavorite.Bool)
	}
	if row.CreatedAt.Valid {
		r.CreatedAt = model.At(row.CreatedAt.Time)
	}
	if row.UpdatedAt.Valid {
		r.UpdatedAt = model.At(row.UpdatedAt.Time)
	}
	if row.OperatingHours != "" && row.OperatingHours != "{}" {
		if err := json.Unmarshal([]byte(row.OperatingHours), &r.OperatingHours); err != nil {
			return model.Restaurant{}, fmt.Errorf("decoding operating hours of restaurant %d: %w", row.ID, err)
		}
	}
	return r, nil
}

func restaurantParams(r model.Restaurant) (sqlc.UpsertRestaurantParams, error) {
	hours := "{}"
	if len(r.OperatingHours) > 0 {
		b, err := json.Marshal(r.OperatingHours)
		if err != nil {
			return sqlc.UpsertRestaurantParams{}, fmt.Errorf("encoding operating hours of restaurant %d: %w", r.ID, err)
		}
		hours = string(b)
	}
	p := sqlc.UpsertRestaurantParams{
		ID:             r.ID,
		Name:           r.Name,
		Neighborhood:   r.Neighborhood,
		Photograph:     r.Photograph,
		Address:        r.Address,
		Lat:            r.LatLng.Lat,
		Lng:            r.LatLng.Lng,
		CuisineType:    r.CuisineType,
		OperatingHours: hours,
		FavoriteState:  string(model.Confirmed),
		CreatedAt:      nullTime(r.CreatedAt.Time),
		UpdatedAt:      nullTime(r.UpdatedAt.Time),
	}
	if r.IsFavorite.Known() {
		p.IsFavorite = sql.NullBool{Bool: r.IsFavorite.Bool(), Valid: true}
	}
	return p, nil
}

func (s *SQLiteStore) reviewParams(r model.Review) sqlc.UpsertReviewParams {
	createdAt := r.CreatedAt.Time
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}
	updatedAt := r.UpdatedAt.Time
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	return sqlc.UpsertReviewParams{
		ServerID:     sql.NullInt64{Int64: r.ID, Valid: true},
		RestaurantID: r.RestaurantID,
		Name:         r.Name,
		Rating:       int64(r.Rating),
		Comments:     r.Comments,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
}

func reviewFromRow(row sqlc.Review) model.Review {
	r := model.Review{
		State:        model.SyncState(row.State),
		RestaurantID: row.RestaurantID,
		Name:         row.Name,
		Rating:       model.Rating(row.Rating),
		Comments:     row.Comments,
		CreatedAt:    model.At(row.CreatedAt),
		UpdatedAt:    model.At(row.UpdatedAt),
	}
	if row.ServerID.Valid {
		r.ID = row.ServerID.Int64
	}
	if row.PlaceholderID.Valid {
		r.PlaceholderID = row.PlaceholderID.String
	}
	return r
}

func reviewsFromRows(rows []sqlc.Review) []model.Review {
	out := make([]model.Review, len(rows))
	for i, row := range rows {
		out[i] = reviewFromRow(row)
	}
	return out
}

func pendingFavoriteFromRow(row sqlc.PendingFavorite) model.PendingFavorite {
	return model.PendingFavorite{
		RestaurantID: row.RestaurantID,
		IsFavorite:   row.IsFavorite,
		Seq:          row.Seq,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func workerEventFromRow(row sqlc.WorkerEvent) model.WorkerEvent {
	ev := model.WorkerEvent{
		ID:        row.ID,
		Kind:      row.Kind,
		Detail:    row.Detail,
		StartedAt: row.StartedAt,
		Status:    row.Status,
	}
	if row.FinishedAt.Valid {
		t := row.FinishedAt.Time
		ev.FinishedAt = &t
	}
	return ev
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// Compile-time check that SQLiteStore implements sw.Store
var _ sw.Store = (*SQLiteStore)(nil)
