package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/fpkuniversity/scorm-runtime/apps/api/echo"
	"github.com/fpkuniversity/scorm-runtime/core"
	"github.com/fpkuniversity/scorm-runtime/core/scorm"
	inmemdb "github.com/fpkuniversity/scorm-runtime/storage/database/inmem"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var out bytes.Buffer
	return &commandLine{
		conf: &core.Config{
			AppName:   "scorm-runtime-test",
			SecretKey: "s3cr3t",
			Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
		},
		db:      db,
		runtime: inmemdb.NewRuntimeRepository(inmemdb.Open()),
		out:     &out,
	}, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _ := setup(t)
	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "token: no user", args: []string{"token"}, wantErr: errHelp},
		{name: "token: bad flag", args: []string{"token", "-lol"}, wantErr: errHelp},
		{name: "state: no sco", args: []string{"state", "-enrollment", "e1"}, wantErr: errHelp},
	})
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "interactions", "sql"}},
	})

	cli.db = nil
	runCLITests(t, cli, []cliTest{
		{name: "without postgres", args: []string{"migrate", "up"}, wantErr: errNoSQL},
	})
}

func Test_commandLine_token(t *testing.T) {
	cli, out := setup(t)
	require.NoError(t, cli.run([]string{"admin", "token", "-user", "learner-1", "-name", "Ada"}))

	claims := new(echoapi.Claims)
	_, err := jwt.ParseWithClaims(strings.TrimSpace(out.String()), claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cli.conf.SecretKey), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "learner-1", claims.Subject)
	assert.Equal(t, "Ada", claims.Name)
	assert.Equal(t, cli.conf.AppName, claims.Issuer)
}

func Test_commandLine_state(t *testing.T) {
	cli, out := setup(t)
	key := scorm.Key{EnrollmentID: "e1", SCOID: "s1"}

	runCLITests(t, cli, []cliTest{
		{name: "not found", args: []string{"state", "-enrollment", "e1", "-sco", "s1"}, wantErrStr: "loading e1_s1: runtime state not found"},
	})

	_, err := cli.runtime.UpsertRuntime(context.Background(), scorm.RuntimeRecord{
		EnrollmentID: key.EnrollmentID,
		SCOID:        key.SCOID,
		UserID:       "learner-1",
		Standard:     scorm.SCORM12,
		Entry:        scorm.EntryAbInitio,
		CMIData:      scorm.CMIData{scorm.ElemLessonStatus: "incomplete"},
		LessonStatus: "incomplete",
	})
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "state", "-enrollment", "e1", "-sco", "s1"}))

	var rec scorm.RuntimeRecord
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	assert.Equal(t, "learner-1", rec.UserID)
	assert.Equal(t, "incomplete", rec.CMIData[scorm.ElemLessonStatus])
}
