package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomo-onboarding/apps/api/echo"
	"github.com/trezcool/masomo-onboarding/core"
	"github.com/trezcool/masomo-onboarding/core/approval"
	"github.com/trezcool/masomo-onboarding/core/onboarding"
	"github.com/trezcool/masomo-onboarding/core/tenant"
	"github.com/trezcool/masomo-onboarding/core/user"
	appfs "github.com/trezcool/masomo-onboarding/fs"
	emailsvc "github.com/trezcool/masomo-onboarding/services/email"
	locksvc "github.com/trezcool/masomo-onboarding/services/lock"
	logsvc "github.com/trezcool/masomo-onboarding/services/logger"
	metricsvc "github.com/trezcool/masomo-onboarding/services/metrics"
	"github.com/trezcool/masomo-onboarding/storage/database"
	sqlxrepos "github.com/trezcool/masomo-onboarding/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	orchestratorParams struct {
		dig.In
		Conf     *core.Config
		Logger   core.Logger
		Requests onboarding.Repository
		Tenants  tenant.Repository
		Users    *user.Service
		Mailer   *onboarding.Mailer
		Locker   approval.Locker
		Metrics  *metricsvc.Metrics
	}

	serverParams struct {
		dig.In
		Conf          *core.Config
		Logger        core.Logger
		UserSvc       *user.Service
		OnboardingSvc *onboarding.Service
		Orchestrator  *approval.Orchestrator
		Validate      *validator.Validate
		Translator    ut.Translator
		Gatherer      prometheus.Gatherer
	}
)

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

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB, "up"); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newMailRenderer(conf *core.Config, logger core.Logger) *core.MailRenderer {
	renderer, err := core.ParseEmailTemplates(appfs.FS, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}
	return renderer
}

func newEmailService(conf *core.Config, renderer *core.MailRenderer, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(renderer, log.New(os.Stdout, "EMAIL : ", log.LstdFlags), logger, conf)
	}
	return emailsvc.NewSendgridService(renderer, logger, conf)
}

// newLocker shares approval locks through Redis when it is configured.
func newLocker(conf *core.Config, logger core.Logger) approval.Locker {
	if conf.Redis.Address == "" {
		return locksvc.NewLocalLocker()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	return locksvc.NewRedisLocker(client, conf.Redis.LockTTL, func(err error) {
		logger.Error(err.Error(), err)
	})
}

func newMetrics() (*metricsvc.Metrics, prometheus.Gatherer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return metricsvc.New(reg), reg
}

func newOrchestrator(p orchestratorParams) *approval.Orchestrator {
	return approval.NewOrchestrator(approval.Deps{
		Requests:   p.Requests,
		Tenants:    p.Tenants,
		Identities: p.Users,
		Profiles:   p.Users,
		Notifier:   p.Mailer,
		Locker:     p.Locker,
		Metrics:    p.Metrics,
		Logger:     p.Logger,
		Conf:       p.Conf,
	})
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(p.Conf, p.Logger, echoapi.Deps{
		UserSvc:       p.UserSvc,
		OnboardingSvc: p.OnboardingSvc,
		Orchestrator:  p.Orchestrator,
		Validate:      p.Validate,
		Translator:    p.Translator,
		Gatherer:      p.Gatherer,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(sqlxrepos.NewRequestRepository))
	must(c.Provide(sqlxrepos.NewTenantRepository))
	must(c.Provide(sqlxrepos.NewIdentityRepository))
	must(c.Provide(sqlxrepos.NewProfileRepository))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newMailRenderer))
	must(c.Provide(newEmailService))
	must(c.Provide(newLocker))
	must(c.Provide(newMetrics))
	must(c.Provide(user.NewService))
	must(c.Provide(onboarding.NewMailer))
	must(c.Provide(onboarding.NewService))
	must(c.Provide(newOrchestrator))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
