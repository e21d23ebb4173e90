package main

import (
	"fmt"

	"github.com/blang/semver"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/fission/esdb-client/pkg/version"
)

var cmdVersion = cli.Command{
	Name:    "version",
	Usage:   "Print the version of the client and the server version it targets.",
	Aliases: []string{"v"},
	Action: commandContext(func(ctx Context) error {
		fmt.Printf("client: %s\n", version.VersionInfo().JSON())
		cfg := loadConfig(ctx)
		v, err := semver.ParseTolerant(cfg.ServerVersion)
		if err != nil {
			logrus.Warnf("Invalid server version %q: %v", cfg.ServerVersion, err)
			return nil
		}
		fmt.Printf("server: %s\n", v)
		return nil
	}),
}
