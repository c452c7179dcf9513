package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/darkkaiser/mydealz-monitor/internal/config"
	"github.com/darkkaiser/mydealz-monitor/internal/fetcher"
	"github.com/darkkaiser/mydealz-monitor/internal/notification/telegram"
	"github.com/darkkaiser/mydealz-monitor/internal/pepper"
	"github.com/darkkaiser/mydealz-monitor/internal/pkg/version"
	"github.com/darkkaiser/mydealz-monitor/internal/service"
	"github.com/darkkaiser/mydealz-monitor/internal/service/monitor"
	applog "github.com/darkkaiser/mydealz-monitor/pkg/log"
	log "github.com/sirupsen/logrus"
)

const banner = `
                      _            _                                  _ _
  _ __ ___  _   _  __| | ___  __ _| |____      _ __ ___   ___  _ __ (_) |_ ___  _ __
 | '_ ` + "`" + ` _ \| | | |/ _` + "`" + ` |/ _ \/ _` + "`" + ` | |_  /____| '_ ` + "`" + ` _ \ / _ \| '_ \| | __/ _ \| '__|
 | | | | | | |_| | (_| |  __/ (_| | |/ /_____| | | | | | (_) | | | | | || (_) | |
 |_| |_| |_|\__, |\__,_|\___|\__,_|_/___|    |_| |_| |_|\___/|_| |_|_|\__\___/|_|
            |___/                                                     %s
--------------------------------------------------------------------------------
`

func main() {
	// Configuration first, the log setup depends on it.
	appConfig, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] loading the configuration failed: %v\n", err)
		os.Exit(1)
	}

	var logOpts applog.Options
	if appConfig.Debug {
		logOpts = applog.NewDevelopmentOptions(config.AppName)
	} else {
		logOpts = applog.NewProductionOptions(config.AppName)
	}

	appLogCloser, err := applog.Setup(logOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] initializing the log system failed: %v\n", err)
		os.Exit(1)
	}
	defer appLogCloser.Close()

	buildInfo := version.Get()
	fmt.Printf(banner, buildInfo.Version)

	applog.WithComponentAndFields("main", log.Fields{
		"version":    buildInfo.String(),
		"env":        map[bool]string{true: "development", false: "production"}[appConfig.Debug],
		"thread_url": appConfig.MyDealz.ThreadURL,
	}).Info("starting the monitor")

	retryDelay, err := time.ParseDuration(appConfig.HTTP.RetryDelay)
	if err != nil {
		// validate() already parsed it once; keep a safe default anyway.
		retryDelay = 2 * time.Second
	}

	// Fetcher middleware chain, innermost first.
	var siteFetcher fetcher.Fetcher = fetcher.NewHTTPFetcherWithTimeout(appConfig.HTTP.Timeout())
	siteFetcher = fetcher.NewUserAgentFetcher(siteFetcher, appConfig.MyDealz.UserAgents)
	siteFetcher = fetcher.NewRetryFetcher(siteFetcher, appConfig.HTTP.MaxRetries, retryDelay, 0)
	defer siteFetcher.Close()

	threadID, err := pepper.ResolveThreadID(context.Background(), siteFetcher,
		appConfig.MyDealz.ThreadURL, appConfig.MyDealz.ThreadID)
	if err != nil {
		log.Fatalf("the monitored thread could not be identified: %v", err)
	}

	applog.WithComponentAndFields("main", log.Fields{
		"thread_id": threadID,
	}).Info("monitored thread identified")

	notifier, err := telegram.New(appConfig.Telegram.BotToken, appConfig.Telegram.ChatID)
	if err != nil {
		log.Fatalf("the Telegram notifier could not be initialized: %v", err)
	}

	stateStore, err := monitor.NewFileStateStore(appConfig.State.FilePath)
	if err != nil {
		log.Fatalf("the state store could not be initialized: %v", err)
	}

	apiClient := pepper.NewClient(siteFetcher, appConfig.MyDealz.ThreadURL, appConfig.MyDealz.PageSize)
	commentSource := monitor.NewFallbackSource(
		monitor.NewAPISource(apiClient, threadID),
		monitor.NewPageSource(siteFetcher, appConfig.MyDealz.ThreadURL),
		apiClient.InvalidateToken,
	)

	monitorService := monitor.NewService(appConfig, commentSource, notifier, stateStore)

	serviceStopCtx, cancel := context.WithCancel(context.Background())
	serviceStopWG := &sync.WaitGroup{}

	services := []service.Service{monitorService}
	for _, s := range services {
		serviceStopWG.Add(1)
		if err := s.Start(serviceStopCtx, serviceStopWG); err != nil {
			applog.WithComponentAndFields("main", log.Fields{
				"error": err,
			}).Error("starting a service failed")

			cancel()
			serviceStopWG.Wait()

			log.Fatal("shutting down after a failed service start")
		}
	}

	termC := make(chan os.Signal, 1)
	signal.Notify(termC, syscall.SIGINT, syscall.SIGTERM)

	applog.WithComponent("main").Info("monitor running")

	<-termC

	applog.WithComponent("main").Info("shutdown signal received")
	cancel()
	serviceStopWG.Wait()
}
