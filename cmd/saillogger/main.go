package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"saillogger/internal/config"
	"saillogger/internal/logging"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: saillogger [-config path] <command>

commands:
  run          log instrument data and serve the race UI
  status       print row counts and last-seen per instrument table
  export       write a joined per-second export (see -help)
  build-polar  rebuild the polar baseline from completed sessions
`)
	os.Exit(2)
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./saillogger.yaml", "Path to YAML config")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	logger := logging.New(cfg.Log, "saillogger")

	switch flag.Arg(0) {
	case "run":
		err = runCmd(cfg, logger)
	case "status":
		err = statusCmd(cfg)
	case "export":
		err = exportCmd(cfg, flag.Args()[1:])
	case "build-polar":
		err = buildPolarCmd(cfg, logger)
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("%s failed: %v", flag.Arg(0), err)
	}
}
