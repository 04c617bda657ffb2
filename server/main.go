package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meikuraledutech/workflow/internal/app"
	"github.com/meikuraledutech/workflow/internal/platform"
	"github.com/meikuraledutech/workflow/internal/report"
)

func main() {
	configPath := flag.String("config", os.Getenv("FLOWCTL_CONFIG"), "path to the YAML config file")
	flag.Parse()

	a, err := app.New(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := a.Store(ctx)
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	var deployer *platform.Deployer
	if a.Config.Platform.APIKey != "" {
		if deployer, err = a.Deployer(false); err != nil {
			log.Fatalf("platform: %v", err)
		}
	}

	if spec := a.Config.Server.BriefCron; spec != "" {
		sched := report.NewScheduler(a.Logger, nil)
		gen := &report.Generator{Dir: a.Dir(), Store: store, DatabaseID: a.Config.Wiki.ExecutivePageID, Logger: a.Logger}
		if _, err := sched.ScheduleBrief(spec, gen); err != nil {
			log.Fatalf("brief schedule: %v", err)
		}
		sched.Start()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = sched.Stop(sctx)
		}()
		a.Logger.Info("daily brief scheduled on %q", spec)
	}

	srv := newApp(store, deployer, a.Logger)
	go func() {
		<-ctx.Done()
		_ = srv.ShutdownWithTimeout(10 * time.Second)
	}()

	a.Logger.Info("listening on %s", a.Config.Server.Addr)
	if err := srv.Listen(a.Config.Server.Addr); err != nil {
		log.Fatal(err)
	}
}
