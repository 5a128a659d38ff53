// Package repository provides the entity store used by the engines: a small
// CRUD contract over one record kind, backed by gorm.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"confessions/internal/middleware"
	"confessions/internal/models"
	"confessions/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Criteria is an exact-match filter over column names.
type Criteria map[string]any

// Fields is a partial update over column names.
type Fields map[string]any

// Store is CRUD access to one record kind. It offers single-record
// consistency and nothing more: no multi-record transactions, no unique
// constraints the engines may rely on.
//
// A sort spec is a column name, prefixed with "-" for descending order.
// A limit <= 0 means unbounded.
type Store[T any] interface {
	List(ctx context.Context, sort string, limit int) ([]*T, error)
	Filter(ctx context.Context, criteria Criteria, sort string, limit int) ([]*T, error)
	Get(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, entity *T) error
	Update(ctx context.Context, id string, fields Fields) error
	Delete(ctx context.Context, id string) error
}

// Incrementer is implemented by stores that can add to an integer column in
// a single statement. The result is floored at 0.
type Incrementer interface {
	Increment(ctx context.Context, id, field string, delta int64) error
}

// Pruner is implemented by stores that support time-based cleanup. Callers
// snapshot ids with IDsBefore and delete exactly that set.
type Pruner interface {
	IDsBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	DeleteWhereIn(ctx context.Context, column string, values []string) (int64, error)
}

// CountingStore is a Store with atomic counters.
type CountingStore[T any] interface {
	Store[T]
	Incrementer
}

// gormStore implements Store, Pruner and, when wrapped by countingStore, Incrementer.
type gormStore[T any] struct {
	db        *gorm.DB
	schema    *schema.Schema
	schemaErr error
	log       *observability.RepoLogger
}

type countingStore[T any] struct {
	*gormStore[T]
}

// NewStore returns a Store that does not advertise atomic increments, so
// callers fall back to read-modify-write on counters.
func NewStore[T any](db *gorm.DB) Store[T] {
	return newGormStore[T](db)
}

// NewCountingStore returns a Store that also implements Incrementer.
func NewCountingStore[T any](db *gorm.DB) CountingStore[T] {
	return &countingStore[T]{newGormStore[T](db)}
}

// NewPruner returns time-based cleanup over T's table.
func NewPruner[T any](db *gorm.DB) Pruner {
	return newGormStore[T](db)
}

func newGormStore[T any](db *gorm.DB) *gormStore[T] {
	stmt := &gorm.Statement{DB: db}
	err := stmt.Parse(new(T))

	table := "unknown"
	if err == nil {
		table = stmt.Schema.Table
	}
	return &gormStore[T]{
		db:        db,
		schema:    stmt.Schema,
		schemaErr: err,
		log:       observability.NewRepoLogger(table, middleware.Logger),
	}
}

func (s *gormStore[T]) kind() string {
	if s.schema == nil {
		return "Record"
	}
	return s.schema.Name
}

func (s *gormStore[T]) column(name string) (*schema.Field, error) {
	if s.schemaErr != nil {
		return nil, models.NewStoreError("schema", s.schemaErr)
	}
	f := s.schema.LookUpField(name)
	if f == nil || f.DBName == "" {
		return nil, models.NewValidationError(fmt.Sprintf("unknown field %q on %s", name, s.kind()))
	}
	return f, nil
}

func (s *gormStore[T]) primaryKey() (string, error) {
	if s.schemaErr != nil {
		return "", models.NewStoreError("schema", s.schemaErr)
	}
	if s.schema.PrioritizedPrimaryField == nil {
		return "", models.NewStoreError("schema", errors.New("no primary key"))
	}
	return s.schema.PrioritizedPrimaryField.DBName, nil
}

func (s *gormStore[T]) byID(ctx context.Context, id string) (*gorm.DB, error) {
	pk, err := s.primaryKey()
	if err != nil {
		return nil, err
	}
	return s.db.WithContext(ctx).Model(new(T)).Where(clause.Eq{Column: clause.Column{Name: pk}, Value: id}), nil
}

func (s *gormStore[T]) fail(ctx context.Context, op string, id any, err error) error {
	translated := translateError(s.kind(), id, op, err)
	if !models.HasCode(translated, models.CodeNotFound) {
		s.log.LogError(ctx, err, op, slog.Any("id", id))
	}
	return translated
}

func (s *gormStore[T]) List(ctx context.Context, sortSpec string, limit int) ([]*T, error) {
	return s.Filter(ctx, nil, sortSpec, limit)
}

func (s *gormStore[T]) Filter(ctx context.Context, criteria Criteria, sortSpec string, limit int) ([]*T, error) {
	defer observability.TrackQuery("filter", s.log.Table())()

	q := s.db.WithContext(ctx).Model(new(T))

	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f, err := s.column(k)
		if err != nil {
			return nil, err
		}
		q = q.Where(clause.Eq{Column: clause.Column{Name: f.DBName}, Value: criteria[k]})
	}

	if sortSpec != "" {
		desc := strings.HasPrefix(sortSpec, "-")
		f, err := s.column(strings.TrimPrefix(sortSpec, "-"))
		if err != nil {
			return nil, err
		}
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: f.DBName}, Desc: desc})
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []*T
	if err := q.Find(&out).Error; err != nil {
		return nil, s.fail(ctx, "filter", nil, err)
	}
	return out, nil
}

func (s *gormStore[T]) Get(ctx context.Context, id string) (*T, error) {
	defer observability.TrackQuery("get", s.log.Table())()

	q, err := s.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	var entity T
	if err := q.Take(&entity).Error; err != nil {
		return nil, s.fail(ctx, "get", id, err)
	}
	return &entity, nil
}

func (s *gormStore[T]) Create(ctx context.Context, entity *T) error {
	defer observability.TrackQuery("create", s.log.Table())()

	if err := s.db.WithContext(ctx).Create(entity).Error; err != nil {
		return s.fail(ctx, "create", nil, err)
	}
	return nil
}

func (s *gormStore[T]) Update(ctx context.Context, id string, fields Fields) error {
	defer observability.TrackQuery("update", s.log.Table())()

	if len(fields) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		f, err := s.column(k)
		if err != nil {
			return err
		}
		if f.PrimaryKey {
			return models.NewValidationError("primary key cannot be updated")
		}
		values[f.DBName] = v
	}

	q, err := s.byID(ctx, id)
	if err != nil {
		return err
	}
	res := q.Updates(values)
	if res.Error != nil {
		return s.fail(ctx, "update", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError(s.kind(), id)
	}
	s.log.LogMutation(ctx, "update", id)
	return nil
}

func (s *gormStore[T]) Delete(ctx context.Context, id string) error {
	defer observability.TrackQuery("delete", s.log.Table())()

	q, err := s.byID(ctx, id)
	if err != nil {
		return err
	}
	res := q.Delete(new(T))
	if res.Error != nil {
		return s.fail(ctx, "delete", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError(s.kind(), id)
	}
	return nil
}

func (s *countingStore[T]) Increment(ctx context.Context, id, field string, delta int64) error {
	defer observability.TrackQuery("increment", s.log.Table())()

	f, err := s.column(field)
	if err != nil {
		return err
	}
	if f.DataType != schema.Int && f.DataType != schema.Uint {
		return models.NewValidationError(fmt.Sprintf("field %q is not a counter", field))
	}

	q, err := s.byID(ctx, id)
	if err != nil {
		return err
	}
	col := clause.Column{Name: f.DBName}
	res := q.UpdateColumn(f.DBName, gorm.Expr("CASE WHEN ? + ? < 0 THEN 0 ELSE ? + ? END", col, delta, col, delta))
	if res.Error != nil {
		return s.fail(ctx, "increment", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError(s.kind(), id)
	}
	s.log.LogMutation(ctx, "increment", id, slog.String("field", f.DBName), slog.Int64("delta", delta))
	return nil
}

func (s *gormStore[T]) createdBefore(ctx context.Context, cutoff time.Time) (*gorm.DB, error) {
	f, err := s.column(models.FieldCreatedDate)
	if err != nil {
		return nil, err
	}
	return s.db.WithContext(ctx).Model(new(T)).
		Where(clause.Lt{Column: clause.Column{Name: f.DBName}, Value: cutoff}), nil
}

func (s *gormStore[T]) IDsBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	pk, err := s.primaryKey()
	if err != nil {
		return nil, err
	}
	q, err := s.createdBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := q.Pluck(pk, &ids).Error; err != nil {
		return nil, s.fail(ctx, "ids_before", nil, err)
	}
	return ids, nil
}

func (s *gormStore[T]) DeleteWhereIn(ctx context.Context, column string, values []string) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	defer observability.TrackQuery("delete_where_in", s.log.Table())()

	f, err := s.column(column)
	if err != nil {
		return 0, err
	}
	in := make([]interface{}, len(values))
	for i, v := range values {
		in[i] = v
	}
	res := s.db.WithContext(ctx).
		Where(clause.IN{Column: clause.Column{Name: f.DBName}, Values: in}).
		Delete(new(T))
	if res.Error != nil {
		return 0, s.fail(ctx, "delete_where_in", nil, res.Error)
	}
	return res.RowsAffected, nil
}

// translateError maps driver errors onto the application error codes.
func translateError(kind string, id any, op string, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(kind, id)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &models.AppError{Code: models.CodeConflict, Message: kind + " already exists", Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &models.AppError{Code: models.CodeConflict, Message: kind + " already exists", Err: err}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &models.AppError{Code: models.CodeConflict, Message: kind + " already exists", Err: err}
	}
	return models.NewStoreError(op, err)
}
