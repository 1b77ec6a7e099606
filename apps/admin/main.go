package main

import (
	"context"
	"os"

	"github.com/fpkuniversity/scorm-runtime/core"
	logsvc "github.com/fpkuniversity/scorm-runtime/services/logger"
	"github.com/fpkuniversity/scorm-runtime/storage/database"
	inmemdb "github.com/fpkuniversity/scorm-runtime/storage/database/inmem"
	sqlxrepos "github.com/fpkuniversity/scorm-runtime/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.NewConsoleLogger(conf)

	cli := commandLine{conf: conf, out: os.Stdout}

	if conf.Database.Engine == "inmem" {
		cli.runtime = inmemdb.NewRuntimeRepository(inmemdb.Open())
	} else {
		db, err := database.Open(context.Background(), conf)
		if err != nil {
			logger.Fatal("opening database", err)
		}
		cli.db = db.DB
		cli.runtime = sqlxrepos.NewRuntimeRepository(db)
		defer func() { _ = db.Close() }()
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}
