package main

import (
	"context"
	"fmt"
	"os"

	"dsddns/config"
	"dsddns/dsddns"
	"dsddns/log"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	configPath = flag.StringP("config", "c", "", "path to config file (.toml, .yaml or .json)")
	dryRun     = flag.BoolP("dry-run", "n", false, "show what would be done without making changes")
	debug      = flag.Bool("debug", false, "enable debug output")
	help       = flag.BoolP("help", "h", false, "Print help message")
)

var buildDate string

const envHelp = `Environment variables:
  HOSTNAMES            comma-separated hostnames to reconcile
                       e.g. HOSTNAMES=host.example.com,api.example.com
  DNSIMPLE_TOKEN       DNSimple API token
  DNSIMPLE_ACCOUNT_ID  account id, auto-detected from the token when unset
  DNSIMPLE_SANDBOX     "true" targets the sandbox environment
  DNSIMPLE_TTL         TTL for created and updated records (default 300)
  DNSIMPLE_RECORD_ID   update this record id directly, single hostname only
  LOG_FILE             append structured logs to this file as well

Variables may also be placed in a .env file in the working directory.`

func init() {
	flag.Parse()
	if *help {
		fmt.Println(flag.CommandLine.FlagUsages())
		fmt.Println(envHelp)
		os.Exit(0)
	}
}

func getInitLogger() context.Context {
	var err error
	var logger *zap.Logger

	if *debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}

	if err != nil {
		fmt.Printf("Failed creating logger: %e\n", err)
		os.Exit(1)
	}

	return log.WithLogger(context.Background(), logger)
}

func getLogger(ctx context.Context, conf *config.Config) context.Context {
	var logOption zap.Config
	if *debug {
		logOption = zap.NewDevelopmentConfig()
	} else {
		logOption = zap.NewProductionConfig()
	}

	if conf.Log.Level != nil {
		logOption.Level.SetLevel(*conf.Log.Level)
	}

	if conf.Log.Encoding != nil {
		logOption.Encoding = *conf.Log.Encoding
	}

	if conf.Log.InfoPath != nil {
		logOption.OutputPaths = *conf.Log.InfoPath
	}

	if conf.Log.ErrorPath != nil {
		logOption.ErrorOutputPaths = *conf.Log.ErrorPath
	}

	logger, err := logOption.Build()
	if err != nil {
		log.S(ctx).Fatalw("cannot build real logger", zap.Error(err))
	}

	return log.WithLogger(context.Background(), logger)
}

func main() {
	ctx := getInitLogger()

	if buildDate != "" {
		log.S(ctx).Infow("dsddns starting", "variant", "release", "build_date", buildDate)
	} else {
		log.S(ctx).Infow("dsddns starting", "variant", "debug")
	}

	conf, err := config.Load(ctx, *configPath)
	if err != nil {
		log.S(ctx).Fatalw("failed loading config", zap.Error(err))
	}

	ctx = getLogger(ctx, conf)

	if *dryRun {
		log.S(ctx).Infow("dry run mode, no changes will be made")
	}

	resolver, err := dsddns.NewResolver(ctx, conf.Sources)
	if err != nil {
		log.S(ctx).Fatalw("cannot init resolver", zap.Error(err))
	}

	ip, err := resolver.Resolve(ctx)
	if err != nil {
		log.S(ctx).Fatalw("cannot determine IPv4 address", zap.Error(err))
	}

	reconciler, err := dsddns.NewReconciler(ctx, conf, *dryRun)
	if err != nil {
		log.S(ctx).Fatalw("cannot init reconciler", zap.Error(err))
	}

	results := reconciler.Run(ctx, conf.Hostnames, ip)

	for _, r := range results {
		if r.Ok() {
			log.S(ctx).Infow("hostname reconciled",
				"hostname", r.Hostname, "action", r.Action.String(), "content", r.NewIP.String())
		} else {
			log.S(ctx).Errorw("hostname failed", "hostname", r.Hostname, zap.Error(r.Err))
		}
	}

	succeeded := dsddns.Succeeded(results)

	switch {
	case succeeded == len(results):
		log.S(ctx).Infow("update completed for all hostnames", "count", len(results))
	case succeeded > 0:
		log.S(ctx).Warnw("update partially completed", "succeeded", succeeded, "total", len(results))
	default:
		log.S(ctx).Errorw("update failed for all hostnames", "total", len(results))
	}

	if code := dsddns.ExitCode(results); code != 0 {
		os.Exit(code)
	}
}
