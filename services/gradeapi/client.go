package gradeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/gradedesk/core"
	"github.com/trezcool/gradedesk/core/grade"
	"github.com/trezcool/gradedesk/core/gradeedit"
	"github.com/trezcool/gradedesk/core/term"
)

// Client talks to a remote gradedesk API. It lets edit sessions run against grades stored elsewhere.
type Client struct {
	baseURL string
	token   string
	http    *rest.Client
	rosters singleflight.Group
}

var _ gradeedit.Backend = (*Client)(nil)

func NewClient(conf core.GradeAPIConfig) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(conf.BaseURL, "/"),
		token:   conf.Token,
		http:    &rest.Client{HTTPClient: &http.Client{Timeout: conf.Timeout}},
	}
}

func (c *Client) ImportGrades(ctx context.Context, studentID string, imp grade.Import) error {
	return c.do(ctx, rest.Post, "/v1/students/"+url.PathEscape(studentID)+"/grades/import", nil, imp, nil, grade.ErrStudentNotFound)
}

func (c *Client) UpdateTermGrade(ctx context.Context, termGradeID string, inputs []grade.SubjectGradeInput) (grade.TermGrade, error) {
	var tg grade.TermGrade
	body := grade.UpdateTermGrade{GradeOfSubject: inputs}
	err := c.do(ctx, rest.Put, "/v1/term-grades/"+url.PathEscape(termGradeID), nil, body, &tg, grade.ErrTermGradeNotFound)
	return tg, err
}

// ClassRoster fetches a class roster. Concurrent fetches of the same roster share one request.
func (c *Client) ClassRoster(ctx context.Context, classID string, orderings ...core.Ordering) ([]grade.GradeRecord, error) {
	var params map[string]string
	if len(orderings) > 0 {
		fields := make([]string, 0, len(orderings))
		for _, ord := range orderings {
			if ord.Ascending {
				fields = append(fields, ord.Field)
			} else {
				fields = append(fields, "-"+ord.Field)
			}
		}
		params = map[string]string{"ordering": strings.Join(fields, ",")}
	}
	path := "/v1/classes/" + url.PathEscape(classID) + "/grades"

	// the shared fetch outlives any one caller; each caller only waits for as long as its own ctx allows
	fetchCtx := context.WithoutCancel(ctx)
	key := path + "?" + params["ordering"]
	ch := c.rosters.DoChan(key, func() (interface{}, error) {
		var records []grade.GradeRecord
		err := c.do(fetchCtx, rest.Get, path, params, nil, &records, nil)
		return records, err
	})
	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "fetching class roster")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]grade.GradeRecord), nil
	}
}

func (c *Client) StudentRecord(ctx context.Context, studentID string) (grade.GradeRecord, error) {
	var rec grade.GradeRecord
	err := c.do(ctx, rest.Get, "/v1/students/"+url.PathEscape(studentID)+"/grades", nil, nil, &rec, grade.ErrStudentNotFound)
	return rec, err
}

func (c *Client) QueryTerms(ctx context.Context) ([]term.Term, error) {
	var terms []term.Term
	err := c.do(ctx, rest.Get, "/v1/terms", nil, nil, &terms, nil)
	return terms, err
}

func (c *Client) QuerySubjects(ctx context.Context) ([]grade.Subject, error) {
	var subjects []grade.Subject
	err := c.do(ctx, rest.Get, "/v1/subjects", nil, nil, &subjects, nil)
	return subjects, err
}

// do sends one request and decodes the response into out. notFound is returned on a 404 when set.
func (c *Client) do(ctx context.Context, method rest.Method, path string, params map[string]string, in, out interface{}, notFound error) error {
	req := rest.Request{
		Method:      method,
		BaseURL:     c.baseURL + path,
		Headers:     map[string]string{"Accept": "application/json"},
		QueryParams: params,
	}
	if c.token != "" {
		req.Headers["Authorization"] = "Bearer " + c.token
	}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		req.Body = body
		req.Headers["Content-Type"] = "application/json"
	}

	res, err := c.http.SendWithContext(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return responseError(res, notFound)
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	return errors.Wrapf(json.Unmarshal([]byte(res.Body), out), "decoding %s response", path)
}

// responseError maps an error response back onto the errors the local services return.
func responseError(res *rest.Response, notFound error) error {
	var msg struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(res.Body), &msg); err == nil && msg.Error != "" {
		switch {
		case res.StatusCode == http.StatusBadRequest:
			return core.NewValidationError(errors.New(msg.Error))
		case res.StatusCode == http.StatusForbidden:
			return core.ErrForbidden
		case res.StatusCode == http.StatusNotFound && notFound != nil:
			return notFound
		}
		return errors.Errorf("grade api: %d: %s", res.StatusCode, msg.Error)
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(res.Body), &fields); err == nil && res.StatusCode == http.StatusBadRequest {
		fldErrs := make([]core.FieldError, 0, len(fields))
		for field, e := range fields {
			fldErrs = append(fldErrs, core.FieldError{Field: field, Error: e})
		}
		sort.Slice(fldErrs, func(i, j int) bool { return fldErrs[i].Field < fldErrs[j].Field })
		return core.NewValidationError(nil, fldErrs...)
	}

	if res.StatusCode == http.StatusNotFound && notFound != nil {
		return notFound
	}
	return errors.Errorf("grade api: %d %s", res.StatusCode, http.StatusText(res.StatusCode))
}
