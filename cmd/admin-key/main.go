package main

import (
	"flag"
	"os"

	"github.com/mtanaka/courseforge/internal/platform/config"
	"github.com/mtanaka/courseforge/internal/tools/adminkey"
)

func main() {
	cfg, err := adminkey.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := adminkey.Run(cfg, os.Stdout, nil); err != nil {
		config.Exitf("generate key: %v", err)
	}
}
