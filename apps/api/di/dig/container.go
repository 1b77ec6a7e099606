package dig_container

import (
	"context"
	"io"
	"log"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/fpkuniversity/scorm-runtime/apps/api/echo"
	"github.com/fpkuniversity/scorm-runtime/core"
	"github.com/fpkuniversity/scorm-runtime/core/scorm"
	logsvc "github.com/fpkuniversity/scorm-runtime/services/logger"
	"github.com/fpkuniversity/scorm-runtime/storage/database"
	inmemdb "github.com/fpkuniversity/scorm-runtime/storage/database/inmem"
	sqlxrepos "github.com/fpkuniversity/scorm-runtime/storage/database/sqlx"
	"github.com/fpkuniversity/scorm-runtime/storage/sessions"
)

const connectTimeout = 30 * time.Second

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var nopCloser = closerFunc(func() error { return nil })

// Storage holds the repositories of the configured database engine.
type Storage struct {
	dig.Out

	Runtime   scorm.RuntimeRepository
	Catalog   scorm.CatalogRepository
	Analytics scorm.AnalyticsRepository
	Closer    io.Closer `name:"dbCloser"`
}

// SessionStorage holds the configured live session store.
type SessionStorage struct {
	dig.Out

	Store  scorm.SessionStore
	Closer io.Closer `name:"sessionsCloser"`
}

// Closers are released, in order, once the server is stopped.
type Closers struct {
	dig.In

	Sessions io.Closer `name:"sessionsCloser"`
	DB       io.Closer `name:"dbCloser"`
}

func newLogger(conf *core.Config) core.Logger {
	console := logsvc.NewConsoleLogger(conf)
	if conf.Debug || conf.RollbarToken == "" {
		return console
	}
	logger := logsvc.NewRollbarLogger(console, conf)
	logger.Enable(true)
	return logger
}

func newStorage(conf *core.Config, logger core.Logger) (Storage, error) {
	if conf.Database.Engine == "inmem" {
		logger.Warn("using the in-memory database, nothing will be persisted")
		db := inmemdb.Open()
		return Storage{
			Runtime:   inmemdb.NewRuntimeRepository(db),
			Catalog:   inmemdb.NewCatalogRepository(db),
			Analytics: inmemdb.NewAnalyticsRepository(db),
			Closer:    nopCloser,
		}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return Storage{}, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return Storage{}, err
	}
	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return Storage{}, err
	}

	return Storage{
		Runtime:   sqlxrepos.NewRuntimeRepository(db),
		Catalog:   sqlxrepos.NewCatalogRepository(db),
		Analytics: sqlxrepos.NewAnalyticsRepository(db),
		Closer:    db,
	}, nil
}

func newSessionStorage(conf *core.Config) (SessionStorage, error) {
	switch conf.Runtime.SessionStore {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		client, err := sessions.NewRedisClient(ctx, conf.Runtime.RedisURL)
		if err != nil {
			return SessionStorage{}, err
		}
		return SessionStorage{
			Store:  sessions.NewRedisStore(client, conf.Runtime.SessionTTL),
			Closer: client,
		}, nil
	case "memory", "":
		store := sessions.NewMemoryStore(conf.Runtime.SessionTTL, conf.Runtime.SweepInterval)
		return SessionStorage{Store: store, Closer: store}, nil
	default:
		return SessionStorage{}, errors.Errorf("unknown session store %q", conf.Runtime.SessionStore)
	}
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	scorm.InitValidators(validate, translator)
	return validate
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newStorage))
	must(c.Provide(newSessionStorage))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(scorm.NewOptions))
	must(c.Provide(scorm.NewService, dig.As(new(scorm.ServiceInterface))))
	must(c.Provide(echoapi.NewOptions))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

// Describe renders the dependency graph in DOT format.
func Describe(c *dig.Container, w io.Writer) error {
	if err := dig.Visualize(c, w); err != nil {
		return errors.Wrap(err, "visualizing container")
	}
	return nil
}
