package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/pkg/errors"

	echoapi "github.com/fpkuniversity/scorm-runtime/apps/api/echo"
	"github.com/fpkuniversity/scorm-runtime/core"
	"github.com/fpkuniversity/scorm-runtime/core/scorm"
)

var (
	errHelp  = errors.New("help provided")
	errNoSQL = errors.New("this command needs a postgres database")
)

type commandLine struct {
	conf    *core.Config
	db      *sql.DB
	runtime scorm.RuntimeRepository
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]               - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  token -user ID [-name NAME]          - issue a learner token for the runtime API")
	fmt.Fprintln(cli.out, "  state -enrollment ID -sco ID         - print the persisted runtime state of an attempt")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenCmd.SetOutput(cli.out)
	tokenUser := tokenCmd.String("user", "", "The learner ID (token subject).")
	tokenName := tokenCmd.String("name", "", "The learner display name.")

	stateCmd := flag.NewFlagSet("state", flag.ContinueOnError)
	stateCmd.SetOutput(cli.out)
	stateEnrollment := stateCmd.String("enrollment", "", "The enrollment ID.")
	stateSCO := stateCmd.String("sco", "", "The SCO ID.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *tokenUser == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(core.Learner{ID: *tokenUser, Name: *tokenName})

	case "state":
		if err := stateCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *stateEnrollment == "" || *stateSCO == "" {
			stateCmd.Usage()
			return errHelp
		}
		return cli.state(scorm.Key{EnrollmentID: *stateEnrollment, SCOID: *stateSCO})

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) token(learner core.Learner) error {
	token, err := echoapi.GenerateToken(echoapi.GetLearnerClaims(learner, cli.conf), cli.conf.SecretKey)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cli.out, token)
	return err
}

func (cli *commandLine) state(key scorm.Key) error {
	rec, err := cli.runtime.GetRuntime(context.Background(), key)
	if err != nil {
		return errors.Wrapf(err, "loading %s", key)
	}
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
