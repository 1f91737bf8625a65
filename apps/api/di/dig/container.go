package dig_container

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/spist/campus/apps/api/echo"
	"github.com/spist/campus/core"
	"github.com/spist/campus/core/analytics"
	"github.com/spist/campus/core/assessment"
	"github.com/spist/campus/core/calendar"
	"github.com/spist/campus/core/course"
	"github.com/spist/campus/core/docimport"
	"github.com/spist/campus/core/notification"
	"github.com/spist/campus/core/user"
	cachesvc "github.com/spist/campus/services/cache"
	emailsvc "github.com/spist/campus/services/email"
	logsvc "github.com/spist/campus/services/logger"
	"github.com/spist/campus/services/realtime"
	smssvc "github.com/spist/campus/services/sms"
	storagesvc "github.com/spist/campus/services/storage"
	"github.com/spist/campus/storage/database"
	gormrepos "github.com/spist/campus/storage/database/gorm"
	inmemdb "github.com/spist/campus/storage/database/inmem"
	boiledrepos "github.com/spist/campus/storage/database/sqlboiler"
	sqlxrepos "github.com/spist/campus/storage/database/sqlx"
)

// Database engines
const (
	EnginePostgres = "postgres"
	EngineInMem    = "inmem"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Store is the database handle along with every repository built on it.
type Store struct {
	dig.Out

	DB          *sqlx.DB // nil with the in-memory engine
	Tx          core.Transactor
	Users       user.Repository
	Courses     course.Repository
	Assessments assessment.Repository
	Imports     docimport.Repository
	Calendar    calendar.Repository
	Notifs      notification.Repository
	Analytics   analytics.Repository
}

func newLoggerFunc(component string) func(conf *core.Config) core.Logger {
	return func(conf *core.Config) core.Logger {
		logger := logsvc.NewRollbarLogger(component, conf)
		logger.Enable(!conf.Debug)
		return logger
	}
}

func newStore(conf *core.Config, loggerParam DBLoggerParam) (Store, error) {
	logger := loggerParam.Logger

	switch conf.Database.Engine {
	case EngineInMem:
		logger.Warn("using the in-memory database, data will not survive a restart")
		db := inmemdb.Open()
		return Store{
			Tx:          inmemdb.NewTransactor(db),
			Users:       inmemdb.NewUserRepository(db),
			Courses:     inmemdb.NewCourseRepository(db),
			Assessments: inmemdb.NewAssessmentRepository(db),
			Imports:     inmemdb.NewDocImportRepository(db),
			Calendar:    inmemdb.NewCalendarRepository(db),
			Notifs:      inmemdb.NewNotificationRepository(db),
			Analytics:   inmemdb.NewAnalyticsRepository(db),
		}, nil

	case EnginePostgres, "":
		if err := database.CreateIfNotExist(conf); err != nil {
			return Store{}, errors.Wrap(err, "creating database")
		}
		db, err := database.Open(conf)
		if err != nil {
			return Store{}, err
		}
		gdb, err := gormrepos.Open(db.DB)
		if err != nil {
			_ = db.Close()
			return Store{}, err
		}
		logger.Info(fmt.Sprintf("connected to %s", conf.Database.Address()))
		return Store{
			DB:          db,
			Tx:          database.NewTransactor(db),
			Users:       sqlxrepos.NewUserRepository(db),
			Courses:     sqlxrepos.NewCourseRepository(db),
			Assessments: sqlxrepos.NewAssessmentRepository(db),
			Imports:     sqlxrepos.NewDocImportRepository(db),
			Calendar:    gormrepos.NewCalendarRepository(gdb),
			Notifs:      gormrepos.NewNotificationRepository(gdb),
			Analytics:   boiledrepos.NewAnalyticsRepository(db),
		}, nil

	default:
		return Store{}, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newCache(conf *core.Config, logger core.Logger) core.Cache {
	return cachesvc.NewCache(context.Background(), conf, logger)
}

func newFileStorage(conf *core.Config) (core.FileStorage, error) {
	return storagesvc.NewStorage(context.Background(), conf)
}

func newHub(conf *core.Config, logger core.Logger) *realtime.Hub {
	return realtime.NewHub(logger, conf.Server.AllowOrigins)
}

type courseParams struct {
	dig.In

	Conf     *core.Config
	Logger   core.Logger
	Repo     course.Repository
	Tx       core.Transactor
	UserSvc  user.ServiceInterface
	NotifSvc notification.ServiceInterface
	MailSvc  core.EmailService
	SMSSvc   core.SMSService
}

func newCourseService(p courseParams) (course.ServiceInterface, error) {
	return course.NewService(course.ServiceDeps{
		Repo:     p.Repo,
		Tx:       p.Tx,
		UserSvc:  p.UserSvc,
		NotifSvc: p.NotifSvc,
		MailSvc:  p.MailSvc,
		SMSSvc:   p.SMSSvc,
		Logger:   p.Logger,
		Conf:     p.Conf,
	})
}

type calendarParams struct {
	dig.In

	Conf      *core.Config
	Logger    core.Logger
	Repo      calendar.Repository
	UserSvc   user.ServiceInterface
	CourseSvc course.ServiceInterface
	NotifSvc  notification.ServiceInterface
	MailSvc   core.EmailService
}

func newCalendarService(p calendarParams) calendar.ServiceInterface {
	return calendar.NewService(calendar.ServiceDeps{
		Repo:      p.Repo,
		UserSvc:   p.UserSvc,
		CourseSvc: p.CourseSvc,
		NotifSvc:  p.NotifSvc,
		MailSvc:   p.MailSvc,
		Logger:    p.Logger,
		Conf:      p.Conf,
	})
}

type serverParams struct {
	dig.In

	Conf         *core.Config
	Logger       core.Logger
	Validate     *validator.Validate
	Translator   ut.Translator
	Cache        core.Cache
	Hub          *realtime.Hub
	UserSvc      user.ServiceInterface
	CourseSvc    course.ServiceInterface
	AssessSvc    assessment.ServiceInterface
	ImportSvc    docimport.ServiceInterface
	CalendarSvc  calendar.ServiceInterface
	NotifSvc     notification.ServiceInterface
	AnalyticsSvc analytics.ServiceInterface
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		Cache:         p.Cache,
		Hub:           p.Hub,
		UserSvc:       p.UserSvc,
		CourseSvc:     p.CourseSvc,
		AssessmentSvc: p.AssessSvc,
		ImportSvc:     p.ImportSvc,
		CalendarSvc:   p.CalendarSvc,
		NotifSvc:      p.NotifSvc,
		AnalyticsSvc:  p.AnalyticsSvc,
	})
}

// New returns a new dependency injection dig.Container.
// component prefixes the log lines of the application logger.
func New(component string) *dig.Container {
	c := dig.New()

	// config & loggers
	must(c.Provide(core.NewConfig))
	must(c.Provide(newLoggerFunc(component)))
	must(c.Provide(newLoggerFunc("DB"), dig.Name("dbLogger")))

	// storage
	must(c.Provide(newStore))
	must(c.Provide(newCache))
	must(c.Provide(newFileStorage))

	// outbound services
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(smssvc.NewService))
	must(c.Provide(newHub))
	must(c.Provide(func(h *realtime.Hub) notification.Pusher { return h }))

	// validation
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))

	// domain services
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(notification.NewService, dig.As(new(notification.ServiceInterface))))
	must(c.Provide(newCourseService))
	must(c.Provide(assessment.NewService, dig.As(new(assessment.ServiceInterface))))
	must(c.Provide(docimport.NewService, dig.As(new(docimport.ServiceInterface))))
	must(c.Provide(newCalendarService))
	must(c.Provide(analytics.NewService, dig.As(new(analytics.ServiceInterface))))

	must(c.Provide(newServer))

	return c
}

// Visualize writes the dependency graph in DOT format.
func Visualize(c *dig.Container, w io.Writer) error {
	return dig.Visualize(c, w)
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
