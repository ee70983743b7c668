package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradedesk/core"
	"github.com/trezcool/gradedesk/core/grade"
	"github.com/trezcool/gradedesk/core/term"
	"github.com/trezcool/gradedesk/storage/database"
)

const dateLayout = "2006-01-02"

var (
	migrateFunc = database.Migrate // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf     *core.Config
	db       *sql.DB
	validate *validator.Validate
	termSvc  *term.Service
	gradeSvc *grade.Service
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) against the database")
	fmt.Fprintln(cli.out, "  addterm -id ID -name NAME -from YYYY-MM-DD -to YYYY-MM-DD - add a term to the catalog")
	fmt.Fprintln(cli.out, "  addsubject -id ID -name NAME -credits N - add a subject")
	fmt.Fprintln(cli.out, "  addstudent -id ID -name NAME -class CLASS [-credits N] - add a student")
	fmt.Fprintln(cli.out, "  token -sub SUBJECT -role admin|instructor|student [-ttl DURATION] - mint an API token")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addTermCmd := cli.newFlagSet("addterm")
	addTermID := addTermCmd.String("id", "", "The term id, e.g. 2024-2025-HK1.")
	addTermName := addTermCmd.String("name", "", "The display name.")
	addTermFrom := addTermCmd.String("from", "", "The first day, "+dateLayout+".")
	addTermTo := addTermCmd.String("to", "", "The last day, "+dateLayout+".")

	addSubjectCmd := cli.newFlagSet("addsubject")
	addSubjectID := addSubjectCmd.String("id", "", "The subject id.")
	addSubjectName := addSubjectCmd.String("name", "", "The display name.")
	addSubjectCredits := addSubjectCmd.Int("credits", 0, "The credits a passing grade earns.")

	addStudentCmd := cli.newFlagSet("addstudent")
	addStudentID := addStudentCmd.String("id", "", "The student id.")
	addStudentName := addStudentCmd.String("name", "", "The student's name.")
	addStudentClass := addStudentCmd.String("class", "", "The class the student belongs to.")
	addStudentCredits := addStudentCmd.Int("credits", 0, "The credits required to graduate.")

	tokenCmd := cli.newFlagSet("token")
	tokenSub := tokenCmd.String("sub", "", "The principal: a staff id, or the student id for students.")
	tokenRole := tokenCmd.String("role", "", "One of admin, instructor, student.")
	tokenTTL := tokenCmd.Duration("ttl", cli.conf.Server.JWTExpirationDelta, "How long the token is valid.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return migrateFunc(ctx, cli.db, args[2], args[3:]...)

	case "addterm":
		if err := addTermCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addTermID == "" || *addTermFrom == "" || *addTermTo == "" {
			addTermCmd.Usage()
			return errHelp
		}
		return cli.addTerm(ctx, *addTermID, *addTermName, *addTermFrom, *addTermTo)

	case "addsubject":
		if err := addSubjectCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addSubjectID == "" {
			addSubjectCmd.Usage()
			return errHelp
		}
		return cli.addSubject(ctx, grade.NewSubject{ID: *addSubjectID, Name: *addSubjectName, Credits: *addSubjectCredits})

	case "addstudent":
		if err := addStudentCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addStudentID == "" || *addStudentClass == "" {
			addStudentCmd.Usage()
			return errHelp
		}
		return cli.addStudent(ctx, grade.NewStudent{
			ID:              *addStudentID,
			Name:            *addStudentName,
			ClassID:         *addStudentClass,
			CreditsRequired: *addStudentCredits,
		})

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *tokenSub == "" || *tokenRole == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenSub, *tokenRole, *tokenTTL)

	default:
		cli.printUsage()
		return errHelp
	}
}
