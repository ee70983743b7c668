package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/gradedesk/core"
	"github.com/trezcool/gradedesk/core/grade"
	"github.com/trezcool/gradedesk/core/term"
	"github.com/trezcool/gradedesk/storage/database"
	sqlxrepos "github.com/trezcool/gradedesk/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	grade.InitValidators(validate, translator)

	// set up DB
	ctx := context.Background()
	errAndDie(database.CreateIfNotExist(ctx, conf))
	db, err := database.Open(ctx, conf)
	errAndDie(err)

	xdb := sqlx.NewDb(db, conf.Database.Engine)
	termSvc := term.NewService(sqlxrepos.NewTermRepository(xdb))

	// start CLI
	cli := commandLine{
		conf:     conf,
		db:       db,
		validate: validate,
		termSvc:  termSvc,
		gradeSvc: grade.NewService(sqlxrepos.NewGradeRepository(xdb), termSvc),
		out:      os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
