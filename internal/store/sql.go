package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/abhisek/lingva/internal/errs"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// repos implements Repos on top of a *sqlx.DB or *sqlx.Tx.
type repos struct {
	ext sqlx.ExtContext
	b   *entsql.DialectBuilder
	seq *sequenceCounter
}

func (r *repos) WordProgress() WordProgressRepo   { return &wordProgressRepo{r} }
func (r *repos) ReviewEvents() ReviewEventRepo    { return &reviewEventRepo{r} }
func (r *repos) BlockProgress() BlockProgressRepo { return &blockProgressRepo{r} }
func (r *repos) QuizAttempts() QuizAttemptRepo    { return &quizAttemptRepo{r} }
func (r *repos) ExamAttempts() ExamAttemptRepo    { return &examAttemptRepo{r} }
func (r *repos) Achievements() AchievementRepo    { return &achievementRepo{r} }
func (r *repos) Statistics() StatisticsRepo       { return &statisticsRepo{r} }
func (r *repos) Events() EventRepo                { return &eventRepo{r} }

// selectAll scans every row of table matching where into dest.
func (r *repos) selectAll(ctx context.Context, dest any, table string, where *entsql.Predicate, orderBy ...string) error {
	s := r.b.Select("*").From(r.b.Table(table))
	if where != nil {
		s.Where(where)
	}
	if len(orderBy) > 0 {
		s.OrderBy(orderBy...)
	}
	q, args := s.Query()
	if err := sqlx.SelectContext(ctx, r.ext, dest, q, args...); err != nil {
		return fmt.Errorf("select %s: %w", table, err)
	}
	return nil
}

// selectOne scans the first row matching where into dest. It reports false
// when there is no such row.
func (r *repos) selectOne(ctx context.Context, dest any, table string, where *entsql.Predicate) (bool, error) {
	q, args := r.b.Select("*").From(r.b.Table(table)).Where(where).Limit(1).Query()
	err := sqlx.GetContext(ctx, r.ext, dest, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select %s: %w", table, err)
	}
	return true, nil
}

// insert writes every db tagged field of rec. A unique key violation is
// reported as a conflict on entity/id.
func (r *repos) insert(ctx context.Context, table, entity, id string, rec any) error {
	cols, vals := columnsOf(rec)
	q, args := r.b.Insert(table).Columns(cols...).Values(vals...).Query()
	if _, err := r.ext.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return errs.Conflict(entity, id, 0)
		}
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// updateVersioned rewrites rec's row if its stored version still equals
// version, bumping the version column.
func (r *repos) updateVersioned(ctx context.Context, table, entity, id string, version int64, rec any) error {
	cols, vals := columnsOf(rec)
	u := r.b.Update(table)
	for i, c := range cols {
		if c == "id" || c == "version" {
			continue
		}
		u.Set(c, vals[i])
	}
	u.Set("version", version+1).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("version", version)))
	q, args := u.Query()

	res, err := r.ext.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if n == 0 {
		return errs.Conflict(entity, id, version)
	}
	return nil
}

// columnsOf lists the db tagged fields of the struct rec points to.
func columnsOf(rec any) ([]string, []any) {
	v := reflect.Indirect(reflect.ValueOf(rec))
	t := v.Type()
	cols := make([]string, 0, t.NumField())
	vals := make([]any, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		cols = append(cols, tag)
		vals = append(vals, v.Field(i).Interface())
	}
	return cols, vals
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
