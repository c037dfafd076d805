package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/redland-cl/registro-escolar/api/echo"
	"github.com/redland-cl/registro-escolar/core"
	"github.com/redland-cl/registro-escolar/core/registro"
	"github.com/redland-cl/registro-escolar/core/report"
	"github.com/redland-cl/registro-escolar/core/user"
	emailsvc "github.com/redland-cl/registro-escolar/services/email"
	logsvc "github.com/redland-cl/registro-escolar/services/logger"
	"github.com/redland-cl/registro-escolar/storage/database"
	mongorepos "github.com/redland-cl/registro-escolar/storage/database/mongo"
)

func main() {
	conf := core.NewConfig()

	std := log.New(os.Stdout, conf.AppName+" : ", log.LstdFlags|log.Lshortfile)
	var logger core.Logger = logsvc.NewStdLogger(std)
	if conf.RollbarToken != "" {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : env %q", conf.Env))

	validate := validator.New()
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator(enLocale.Locale())
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	registro.RegisterValidators(validate, translator)

	core.ParseEmailTemplates(logger)

	// set up the document store; the client is process-scoped and released
	// on shutdown
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening document store", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Error("closing document store", err)
		}
	}()
	defer logger.Info("Application stopped")

	// set up services
	var mailSvc core.EmailService
	switch {
	case conf.SMTP.User != "" && conf.SMTP.Password != "":
		mailSvc = emailsvc.NewSMTPService(conf)
	case conf.SendgridAPIKey != "":
		mailSvc = emailsvc.NewSendgridService(conf)
	default:
		logger.Info("no email backend configured: report emails run in demo mode")
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	}

	usrSvc := user.NewService(mongorepos.NewUserRepository(db), conf)
	regSvc := registro.NewService(
		mongorepos.NewActivityRepository(db),
		mongorepos.NewEvaluationRepository(db),
	)
	rptSvc := report.NewService(mailSvc, conf, logger)

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(&echoapi.Options{
		Addr:        conf.Server.Addr,
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		UserSvc:     usrSvc,
		RegistroSvc: regSvc,
		ReportSvc:   rptSvc,
	})

	go server.Start()
	logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Addr))

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
