package main

import (
	"fmt"

	"github.com/urfave/cli"
	"gopkg.in/yaml.v2"
)

var cmdConfig = cli.Command{
	Name:   "config",
	Hidden: true,
	Usage:  "Print the effective client config",
	Action: commandContext(func(ctx Context) error {
		fmt.Println("cli:")
		for _, flag := range ctx.GlobalFlagNames() {
			fmt.Printf("  %s: %v\n", flag, ctx.GlobalGeneric(flag))
		}
		bs, err := yaml.Marshal(loadConfig(ctx))
		if err != nil {
			return err
		}
		fmt.Printf("client:\n%s", bs)
		return nil
	}),
}
