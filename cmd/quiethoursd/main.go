package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

var version = "dev"

var cfgPath string

func main() {
	a := cli.NewApp()
	a.Name = "quiethoursd"
	a.Usage = "study block scheduler with conflict detection and mail reminders"
	a.Version = version
	a.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "config, c",
			Value:       "./config.json",
			Usage:       "path to config file (json or yaml)",
			Destination: &cfgPath,
		},
	}
	a.Commands = []cli.Command{
		runCommand,
		remindCommand,
		blocksCommand,
		ownerCommand,
	}

	if err := a.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "quiethoursd:", err)
		os.Exit(1)
	}
}
