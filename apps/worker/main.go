// Command worker emails the daily attendance digest to the school admins.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/roster"
	"github.com/trezcool/mahudhurio/core/user"
	emailsvc "github.com/trezcool/mahudhurio/services/email"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/storage/database"
	boiledrepos "github.com/trezcool/mahudhurio/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/mahudhurio/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	stdLogger := log.New(os.Stdout, "WORKER : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("Failed to close database", err)
		}
	}()
	if err = database.Ping(ctx, db); err != nil {
		logger.Fatal(fmt.Sprintf("reaching database: %v", err), err)
	}

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	core.ParseEmailTemplates(conf, logger)

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, conf)
	rosterSvc := roster.NewService(sqlxrepos.NewRosterRepository(db), usrSvc, conf)
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db), rosterSvc, usrSvc, mailSvc, logger)
	// the worker only reads attendance: nothing is published
	attSvc := attendance.NewService(boiledrepos.NewAttendanceRepository(db), rosterSvc, nil, logger, conf)

	digest := newDigester(attSvc, usrSvc, notifSvc, mailSvc, logger, conf)

	// =========================================================================
	// Start Scheduler

	sched := newScheduler(rosterSvc, func() {
		if err := digest.run(ctx); err != nil {
			logger.Error(fmt.Sprintf("sending digest: %v", err), err)
		}
	}, conf.Timezone, cron.VerbosePrintfLogger(stdLogger), logger)

	if err = sched.start(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("starting scheduler: %v", err), err)
	}
	logger.Info(fmt.Sprintf("Worker started : version %q, next digest at %s", conf.Build, sched.next()))
	defer logger.Info("Worker stopped")

	// =========================================================================
	// Shutdown

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	cancel()
	sched.stop()
}
