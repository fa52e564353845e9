// advfilter is a CLI for working with extended advertising report filters:
// it encodes configuration command payloads and replays captured events
// through a configured filter engine.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/hcitools/advfilter"
	"github.com/hcitools/advfilter/uuid"
)

func main() {
	app := cli.NewApp()

	app.Name = "advfilter"
	app.Usage = "A CLI tool for LE extended advertising report filters"
	app.Version = "0.0.1"
	app.Action = cli.ShowAppHelp

	configFlags := []cli.Flag{
		cli.UintFlag{Name: "rules, r", Usage: "enabled rule bitmask (bits 0-6)"},
		cli.IntFlag{Name: "rssi", Value: advfilter.DefaultRSSIThreshold, Usage: "RSSI threshold in dBm"},
		cli.StringSliceFlag{Name: "uuid16", Usage: "16-bit service UUID (hex, repeatable)"},
		cli.StringSliceFlag{Name: "uuid32", Usage: "32-bit service UUID (hex, repeatable)"},
	}

	app.Commands = []cli.Command{
		{
			Name:    "encode",
			Aliases: []string{"e"},
			Usage:   "Encode and validate a filter configuration payload",
			Action:  encode,
			Flags:   configFlags,
		},
		{
			Name:      "check",
			Aliases:   []string{"c"},
			Usage:     "Run hex-encoded HCI event packets through the filter",
			ArgsUsage: "EVENT [EVENT...]",
			Action:    check,
			Flags:     configFlags,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func configFromFlags(c *cli.Context) (advfilter.Config, error) {
	cfg := advfilter.Config{
		Rules:         advfilter.Rule(c.Uint("rules")),
		RSSIThreshold: int8(c.Int("rssi")),
	}
	for _, s := range c.StringSlice("uuid16") {
		u, err := uuid.Parse(s)
		if err != nil {
			return cfg, errors.Wrapf(err, "uuid16 %q", s)
		}
		cfg.UUID16 = append(cfg.UUID16, u)
	}
	for _, s := range c.StringSlice("uuid32") {
		u, err := uuid.Parse(s)
		if err != nil {
			return cfg, errors.Wrapf(err, "uuid32 %q", s)
		}
		cfg.UUID32 = append(cfg.UUID32, u)
	}
	return cfg, nil
}

func encode(c *cli.Context) error {
	cfg, err := configFromFlags(c)
	if err != nil {
		return err
	}
	b := cfg.Marshal()
	if _, err := advfilter.ParseConfig(b, len(cfg.UUID16), len(cfg.UUID32)); err != nil {
		return err
	}
	fmt.Printf("%X\n", b)
	return nil
}

func check(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("no event packets given")
	}
	cfg, err := configFromFlags(c)
	if err != nil {
		return err
	}
	e, err := advfilter.NewEngine(
		advfilter.OptUUID16Capacity(len(cfg.UUID16)),
		advfilter.OptUUID32Capacity(len(cfg.UUID32)),
		advfilter.OptDefaultConfig(cfg),
	)
	if err != nil {
		return err
	}
	chain := advfilter.NewChain()
	e.Register(chain)

	for _, arg := range c.Args() {
		b, err := hex.DecodeString(arg)
		if err != nil {
			return errors.Wrapf(err, "event %q", arg)
		}
		fmt.Printf("%s  %v\n", arg, chain.Apply(b))
	}
	return nil
}
