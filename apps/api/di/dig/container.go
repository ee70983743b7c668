package dig_container

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/gradedesk/apps/api/echo"
	"github.com/trezcool/gradedesk/core"
	"github.com/trezcool/gradedesk/core/grade"
	"github.com/trezcool/gradedesk/core/gradeedit"
	"github.com/trezcool/gradedesk/core/term"
	"github.com/trezcool/gradedesk/services/gradeapi"
	logsvc "github.com/trezcool/gradedesk/services/logger"
	"github.com/trezcool/gradedesk/storage/database"
	"github.com/trezcool/gradedesk/storage/database/inmem"
	sqlxrepos "github.com/trezcool/gradedesk/storage/database/sqlx"
)

const dbSetUpTimeout = time.Minute

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newDB sets up the postgres database. It returns nil when the in-memory store is configured.
func newDB(conf *core.Config, loggerParam DBLoggerParam) *sql.DB {
	if conf.Database.InMemory {
		return nil
	}

	setUp := func() (*sql.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), dbSetUpTimeout)
		defer cancel()

		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}
		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(ctx, db, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newRepositories(conf *core.Config, db *sql.DB) (term.Repository, grade.Repository) {
	if db == nil {
		mem := inmemdb.Open()
		return inmemdb.NewTermRepository(mem), inmemdb.NewGradeRepository(mem)
	}
	xdb := sqlx.NewDb(db, conf.Database.Engine)
	return sqlxrepos.NewTermRepository(xdb), sqlxrepos.NewGradeRepository(xdb)
}

func newTermCatalog(svc *term.Service) grade.TermCatalog {
	return svc
}

// newBackend picks where edit sessions write: a remote grade API when one is configured, else this process.
func newBackend(conf *core.Config, grades *grade.Service, terms *term.Service) gradeedit.Backend {
	if conf.GradeAPI.BaseURL != "" {
		return gradeapi.NewClient(conf.GradeAPI)
	}
	return gradeedit.NewLocalBackend(grades, terms)
}

func newSessionStore(conf *core.Config, backend gradeedit.Backend, logger core.Logger) *gradeedit.Store {
	return gradeedit.NewStore(backend, logger, conf.Sessions.IdleTimeout)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(term.NewService))
	must(c.Provide(newTermCatalog))
	must(c.Provide(grade.NewService))
	must(c.Provide(newBackend))
	must(c.Provide(newSessionStore))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
