package main

import (
	"database/sql"
	"fmt"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	dig_container "github.com/spist/campus/apps/api/di/dig"
	"github.com/spist/campus/core"
	"github.com/spist/campus/core/assessment"
	"github.com/spist/campus/core/calendar"
	"github.com/spist/campus/core/course"
	"github.com/spist/campus/core/user"
)

func main() {
	c := dig_container.New("ADMIN")

	code := 0
	err := c.Invoke(func(
		logger core.Logger,
		db *sqlx.DB,
		validate *validator.Validate,
		translator ut.Translator,
		usrRepo user.Repository,
		courseSvc course.ServiceInterface,
		assessSvc assessment.ServiceInterface,
		calSvc calendar.ServiceInterface,
	) {
		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)
		if err := core.ParseEmailTemplates(); err != nil {
			logger.Fatal(err.Error(), err)
		}

		var sqlDB *sql.DB
		if db != nil {
			sqlDB = db.DB
			defer db.Close()
		}

		cli := commandLine{
			out:       os.Stdout,
			db:        sqlDB,
			logger:    logger,
			validate:  validate,
			usrRepo:   usrRepo,
			courseSvc: courseSvc,
			assessSvc: assessSvc,
			calSvc:    calSvc,
		}
		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
			}
			code = 1
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		code = 1
	}
	os.Exit(code)
}
