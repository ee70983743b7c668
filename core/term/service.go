package term

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/gradedesk/core"
)

var (
	// errors
	ErrNotFound = errors.New("term not found")
	ErrExists   = errors.New("a term with this id already exists")

	suggestionCutoff = .6
)

type (
	Repository interface {
		CreateTerm(ctx context.Context, t Term) (Term, error)
		// QueryTerms returns all terms ordered by start date.
		QueryTerms(ctx context.Context) ([]Term, error)
		GetTerm(ctx context.Context, id string) (Term, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) QueryAll(ctx context.Context) ([]Term, error) {
	return svc.repo.QueryTerms(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Term, error) {
	return svc.repo.GetTerm(ctx, core.CleanString(id))
}

func (svc *Service) Create(ctx context.Context, nt NewTerm) (Term, error) {
	t, err := svc.repo.CreateTerm(ctx, Term{
		ID:       nt.ID,
		Name:     nt.Name,
		StartsOn: nt.StartsOn.UTC(),
		EndsOn:   nt.EndsOn.UTC(),
	})
	if errors.Cause(err) == ErrExists {
		return Term{}, core.NewValidationError(err, core.FieldError{Field: "id", Error: err.Error()})
	}
	return t, err
}

// Suggest returns up to n term ids whose id or name closely matches input, best match first.
func (svc *Service) Suggest(ctx context.Context, input string, n int) ([]string, error) {
	input = core.CleanString(input, true /* lower */)
	if input == "" || n <= 0 {
		return nil, nil
	}
	terms, err := svc.repo.QueryTerms(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying terms")
	}

	type match struct {
		id    string
		ratio float64
	}
	matches := make([]match, 0, len(terms))
	for _, t := range terms {
		ratio := similarity(input, t.ID)
		if r := similarity(input, t.Name); r > ratio {
			ratio = r
		}
		if ratio >= suggestionCutoff {
			matches = append(matches, match{id: t.ID, ratio: ratio})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].ratio > matches[j].ratio })

	if len(matches) > n {
		matches = matches[:n]
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.id)
	}
	return ids, nil
}

func similarity(input, attr string) float64 {
	attr = strings.ToLower(attr)
	return difflib.NewMatcher(strings.Split(input, ""), strings.Split(attr, "")).Ratio()
}
