package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/gradedesk/core/term"
)

const uniqueViolation = "23505"

type termRow struct {
	ID       string    `db:"id"`
	Name     string    `db:"name"`
	StartsOn time.Time `db:"starts_on"`
	EndsOn   time.Time `db:"ends_on"`
}

func (r termRow) term() term.Term {
	return term.Term{ID: r.ID, Name: r.Name, StartsOn: r.StartsOn.UTC(), EndsOn: r.EndsOn.UTC()}
}

type termRepository struct {
	db *sqlx.DB
}

var _ term.Repository = (*termRepository)(nil)

func NewTermRepository(db *sqlx.DB) term.Repository {
	return &termRepository{db: db}
}

func (repo *termRepository) CreateTerm(ctx context.Context, t term.Term) (term.Term, error) {
	row := termRow{ID: t.ID, Name: t.Name, StartsOn: t.StartsOn, EndsOn: t.EndsOn}
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO term (id, name, starts_on, ends_on) VALUES (:id, :name, :starts_on, :ends_on)`, row)
	if isUniqueViolation(err) {
		return term.Term{}, term.ErrExists
	}
	if err != nil {
		return term.Term{}, errors.Wrap(err, "inserting term")
	}
	return row.term(), nil
}

func (repo *termRepository) QueryTerms(ctx context.Context) ([]term.Term, error) {
	var rows []termRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT id, name, starts_on, ends_on FROM term ORDER BY starts_on, id`); err != nil {
		return nil, errors.Wrap(err, "selecting terms")
	}
	terms := make([]term.Term, 0, len(rows))
	for _, r := range rows {
		terms = append(terms, r.term())
	}
	return terms, nil
}

func (repo *termRepository) GetTerm(ctx context.Context, id string) (term.Term, error) {
	var row termRow
	err := repo.db.GetContext(ctx, &row, `SELECT id, name, starts_on, ends_on FROM term WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return term.Term{}, term.ErrNotFound
	}
	if err != nil {
		return term.Term{}, errors.Wrap(err, "selecting term")
	}
	return row.term(), nil
}

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}
