package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"machinebarter.dev/barter/pkg/transform"
)

var Version string

var Commit = func() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
	}

	return ""
}()

func main() {
	cliflags := make(map[string]any)
	ctx := context.Background()

	var configFile string

	app := &cli.Command{
		Name:  "barter",
		Usage: "Share docker-machine configurations between hosts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "Specifed TOML config file",
				Required:    false,
				Destination: &configFile,
				Aliases:     []string{"c"},
				Sources:     cli.EnvVars("BARTER_CONFIG"),
				Action: func(ctx context.Context, cCtx *cli.Command, v string) error {
					if v == "" {
						return errors.New("config file passed without value")
					}
					if _, err := os.Stat(v); err != nil && os.IsNotExist(err) {
						return errors.New("config file not found")
					} else if err != nil {
						return err
					}
					return nil
				},
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Action: func(ctx context.Context, cm *cli.Command, b bool) error {
					cliflags["debug"] = b
					return nil
				},
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Machine store directory",
				Action: func(ctx context.Context, cm *cli.Command, v string) error {
					cliflags["store_dir"] = v
					return nil
				},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "export",
				Usage:     "Print a shareable configuration for a machine",
				ArgsUsage: "<machine>",
				Action: func(ctx context.Context, cCtx *cli.Command) error {
					if cCtx.NArg() != 1 {
						return errors.New("export needs exactly one machine name")
					}
					b, err := setup(ctx, configFile, cliflags, nil)
					if err != nil {
						return err
					}
					return b.Export(ctx, cCtx.Args().First(), os.Stdout)
				},
			},
			{
				Name:      "import",
				Usage:     "Install a machine from a shared configuration",
				ArgsUsage: "<config-file>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "diff",
						Usage: "Show changes to an existing config.json",
					},
					&cli.BoolFlag{
						Name:  "backup",
						Usage: "Archive an existing machine directory first",
					},
					&cli.BoolFlag{
						Name:  "no-prompt",
						Usage: "Fail instead of prompting for missing secrets",
					},
					&cli.StringSliceFlag{
						Name:  "secret",
						Usage: "Supply a secret as KEY=VALUE, e.g. Password=hunter2",
					},
				},
				Action: func(ctx context.Context, cCtx *cli.Command) error {
					if cCtx.NArg() != 1 {
						return errors.New("import needs exactly one config file")
					}
					if cCtx.IsSet("diff") {
						cliflags["diffs"] = cCtx.Bool("diff")
					}
					if cCtx.IsSet("backup") {
						cliflags["backup"] = cCtx.Bool("backup")
					}
					if cCtx.IsSet("no-prompt") {
						cliflags["no_prompt"] = cCtx.Bool("no-prompt")
					}
					b, err := setup(ctx, configFile, cliflags, cCtx.StringSlice("secret"))
					if err != nil {
						return err
					}
					result, err := b.Import(ctx, cCtx.Args().First())
					if err != nil {
						return err
					}
					if result.Backup != "" {
						fmt.Printf("Backed up previous %v to %v\n", result.Name, result.Backup)
					}
					fmt.Printf("Imported %v into %v\n", result.Name, result.Dir)
					return nil
				},
			},
			{
				Name:  "config",
				Usage: "Dump active config",
				Action: func(ctx context.Context, cCtx *cli.Command) error {
					c, err := loadConfig(ctx, configFile, cliflags)
					if err != nil {
						return err
					}
					fmt.Println(c)
					return nil
				},
			},
			{
				Name:  "artifacts",
				Usage: "List the files inlined for path fields",
				Action: func(ctx context.Context, cCtx *cli.Command) error {
					c, err := loadConfig(ctx, configFile, cliflags)
					if err != nil {
						return err
					}
					table, err := transform.DefaultArtifacts().With(c.Artifacts)
					if err != nil {
						return err
					}
					fmt.Print(table)
					return nil
				},
			},
			{
				Name:  "version",
				Usage: "show version",
				Action: func(_ context.Context, _ *cli.Command) error {
					fmt.Printf("barter version %v (git-%v)\n", Version, Commit)
					return nil
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
