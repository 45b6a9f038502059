package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"

	"github.com/trezcool/masomo-onboarding/core"
	"github.com/trezcool/masomo-onboarding/core/approval"
	"github.com/trezcool/masomo-onboarding/core/onboarding"
	"github.com/trezcool/masomo-onboarding/core/user"
	appfs "github.com/trezcool/masomo-onboarding/fs"
	emailsvc "github.com/trezcool/masomo-onboarding/services/email"
	locksvc "github.com/trezcool/masomo-onboarding/services/lock"
	logsvc "github.com/trezcool/masomo-onboarding/services/logger"
	"github.com/trezcool/masomo-onboarding/storage/database"
	sqlxrepos "github.com/trezcool/masomo-onboarding/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	// set up services
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	renderer, err := core.ParseEmailTemplates(appfs.FS, conf)
	if err != nil {
		logger.Fatal("parsing email templates", err)
	}
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(renderer, log.New(os.Stdout, "EMAIL : ", log.LstdFlags), logger, conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(renderer, logger, conf)
	}

	// approvals from the shell and from the API must not overlap
	var locker approval.Locker = locksvc.NewLocalLocker()
	if conf.Redis.Address != "" {
		client := redis.NewClient(&redis.Options{Addr: conf.Redis.Address, Password: conf.Redis.Password, DB: conf.Redis.DB})
		defer func() { _ = client.Close() }()
		locker = locksvc.NewRedisLocker(client, conf.Redis.LockTTL, func(err error) { logger.Error(err.Error(), err) })
	}

	usrSvc := user.NewService(sqlxrepos.NewIdentityRepository(db), sqlxrepos.NewProfileRepository(db), validate)
	orch := approval.NewOrchestrator(approval.Deps{
		Requests:   sqlxrepos.NewRequestRepository(db),
		Tenants:    sqlxrepos.NewTenantRepository(db),
		Identities: usrSvc,
		Profiles:   usrSvc,
		Notifier:   onboarding.NewMailer(syncEmailService{mailSvc, logger}, conf),
		Locker:     locker,
		Logger:     logger,
		Conf:       conf,
	})

	// start CLI
	cli := commandLine{
		db:       db.DB,
		usrSvc:   usrSvc,
		orch:     orch,
		validate: validate,
		out:      os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	logger.Close()
	if err != nil {
		if err != errHelp {
			log.Printf("\nerror: %+v\n", err)
		}
		os.Exit(1)
	}
}

// syncEmailService sends every email before the command returns.
type syncEmailService struct {
	core.EmailService
	logger core.Logger
}

func (svc syncEmailService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if err := svc.Send(context.Background(), msg); err != nil {
			svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
		}
	}
}
