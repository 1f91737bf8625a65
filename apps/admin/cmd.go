package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/assessment"
	"github.com/spist/campus/core/calendar"
	"github.com/spist/campus/core/course"
	"github.com/spist/campus/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	out       io.Writer
	db        *sql.DB // nil with the in-memory engine
	logger    core.Logger
	validate  *validator.Validate
	usrRepo   user.Repository
	courseSvc course.ServiceInterface
	assessSvc assessment.ServiceInterface
	calSvc    calendar.ServiceInterface
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, version, ...)")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL [-name NAME] [-role admin|teacher|student] [-studentid ID] - add or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  seed -file FILE - load departments, courses and academic years from a YAML file")
	fmt.Fprintln(cli.out, "  sendreminders - send the calendar reminders that are due")
	fmt.Fprintln(cli.out, "  publishscheduled - publish the draft assessments whose availability window has opened")
}

// promptPassword reads a password without echoing it.
func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserCmd.SetOutput(cli.out)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserRole := addUserCmd.String("role", roleAdmin, "One of admin, teacher or student.")
	addUserStudentID := addUserCmd.String("studentid", "", "The student ID, required for students.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordCmd.SetOutput(cli.out)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	seedCmd := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedCmd.SetOutput(cli.out)
	seedFile := seedCmd.String("file", "", "Path to the YAML seed file.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		usr, err := cli.addUser(ctx, newUserArgs{
			username:  *addUserUname,
			email:     *addUserEmail,
			name:      *addUserName,
			role:      *addUserRole,
			studentID: *addUserStudentID,
			password:  pwd,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "user %q saved\n", usr.Username)
		return nil

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordUname, pwd)

	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *seedFile == "" {
			seedCmd.Usage()
			return errHelp
		}
		return cli.seed(ctx, *seedFile)

	case "sendreminders":
		n, err := cli.calSvc.SendDueReminders(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%d reminder(s) sent\n", n)
		return nil

	case "publishscheduled":
		n, err := cli.assessSvc.PublishScheduled(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%d assessment(s) published\n", n)
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}
