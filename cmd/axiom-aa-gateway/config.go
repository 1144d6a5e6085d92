package main

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v2"

	"github.com/axiomesh/axiom-aa-gateway/pkg/repo"
)

var configCMD = &cli.Command{
	Name:  "config",
	Usage: "Operate the gateway config",
	Subcommands: []*cli.Command{
		{
			Name:   "generate",
			Usage:  "Generate the default config in the repo path",
			Action: generateConfig,
		},
		{
			Name:   "show",
			Usage:  "Print the effective config",
			Action: showConfig,
		},
	},
}

func generateConfig(ctx *cli.Context) error {
	rep, err := repo.Load(ctx.String("repo"))
	if err != nil {
		return err
	}
	rep.PrintInfo(func(c string) {
		fmt.Println(c)
	})
	return nil
}

func showConfig(ctx *cli.Context) error {
	rep, err := repo.Load(ctx.String("repo"))
	if err != nil {
		return err
	}
	raw, err := toml.Marshal(rep.Config)
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
