package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/gradedesk/core"
	"github.com/trezcool/gradedesk/core/auth"
	"github.com/trezcool/gradedesk/core/grade"
	"github.com/trezcool/gradedesk/core/term"
)

// addTerm adds a term running from the start of day from to the end of day to (UTC).
func (cli *commandLine) addTerm(ctx context.Context, id, name, from, to string) error {
	startsOn, err := time.Parse(dateLayout, from)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "from", Error: "expected " + dateLayout})
	}
	endsOn, err := time.Parse(dateLayout, to)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "to", Error: "expected " + dateLayout})
	}

	nt := term.NewTerm{ID: id, Name: name, StartsOn: startsOn, EndsOn: endsOn.Add(24*time.Hour - time.Second)}
	if nt.Name == "" {
		nt.Name = id
	}
	if err = nt.Validate(cli.validate); err != nil {
		return err
	}
	t, err := cli.termSvc.Create(ctx, nt)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "term %s (%s) added\n", t.ID, t.Name)
	return nil
}

func (cli *commandLine) addSubject(ctx context.Context, ns grade.NewSubject) error {
	if ns.Name == "" {
		ns.Name = ns.ID
	}
	if err := ns.Validate(cli.validate); err != nil {
		return err
	}
	sub, err := cli.gradeSvc.CreateSubject(ctx, ns)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "subject %s (%d credits) added\n", sub.ID, sub.Credits)
	return nil
}

func (cli *commandLine) addStudent(ctx context.Context, ns grade.NewStudent) error {
	if ns.Name == "" {
		ns.Name = ns.ID
	}
	if err := ns.Validate(cli.validate); err != nil {
		return err
	}
	st, err := cli.gradeSvc.CreateStudent(ctx, ns)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "student %s added to %s\n", st.ID, st.ClassID)
	return nil
}

// token prints a signed API token.
func (cli *commandLine) token(subject, role string, ttl time.Duration) error {
	claims, err := auth.NewClaims(cli.conf.AppName, core.CleanString(subject), role, ttl)
	if err != nil {
		return err
	}
	token, err := auth.GenerateToken([]byte(cli.conf.SecretKey), claims)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
