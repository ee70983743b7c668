package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/gradedesk/core/term"
)

type termRepository struct {
	db *DB
}

var _ term.Repository = (*termRepository)(nil)

func NewTermRepository(db *DB) term.Repository {
	return &termRepository{db: db}
}

func (repo *termRepository) CreateTerm(_ context.Context, t term.Term) (term.Term, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.terms[t.ID]; ok {
		return term.Term{}, term.ErrExists
	}
	repo.db.terms[t.ID] = &t
	return t, nil
}

func (repo *termRepository) QueryTerms(context.Context) ([]term.Term, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	terms := make([]term.Term, 0, len(repo.db.terms))
	for _, t := range repo.db.terms {
		terms = append(terms, *t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].StartsOn.Equal(terms[j].StartsOn) {
			return terms[i].ID < terms[j].ID
		}
		return terms[i].StartsOn.Before(terms[j].StartsOn)
	})
	return terms, nil
}

func (repo *termRepository) GetTerm(_ context.Context, id string) (term.Term, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.terms[id]; ok {
		return *t, nil
	}
	return term.Term{}, term.ErrNotFound
}
