package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taoyao-code/daly-bms/internal/protocol/daly"
)

func parseWord(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid 16-bit value %q", s)
	}
	return uint16(v), nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on|off, got %q", s)
}

// newBuildCmd 子命令只打印帧，不下发
func newBuildCmd(profile func() (*daly.Profile, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build command frames for the selected profile",
	}

	leaf := func(use, short string, args cobra.PositionalArgs, build func(p *daly.Profile, args []string) ([]byte, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  args,
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := profile()
				if err != nil {
					return err
				}
				frame, err := build(p, args)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%X\n", frame)
				return nil
			},
		}
	}

	cmd.AddCommand(
		leaf("read <address> <quantity>", "Read registers", cobra.ExactArgs(2), func(p *daly.Profile, args []string) ([]byte, error) {
			addr, err := parseWord(args[0])
			if err != nil {
				return nil, err
			}
			qty, err := parseWord(args[1])
			if err != nil {
				return nil, err
			}
			return daly.BuildRead(p, addr, qty)
		}),
		leaf("write <address> <value>", "Write one register", cobra.ExactArgs(2), func(p *daly.Profile, args []string) ([]byte, error) {
			addr, err := parseWord(args[0])
			if err != nil {
				return nil, err
			}
			value, err := parseWord(args[1])
			if err != nil {
				return nil, err
			}
			return daly.BuildWrite(p, addr, value)
		}),
		leaf("action <name>", "Fixed opcode action (retrieve_settings, factory_reset, ...)", cobra.ExactArgs(1), func(p *daly.Profile, args []string) ([]byte, error) {
			a, ok := daly.ParseAction(args[0])
			if !ok {
				return nil, fmt.Errorf("unknown action %q", args[0])
			}
			return daly.BuildAction(p, a)
		}),
		leaf("soc <percent>", "Set state of charge", cobra.ExactArgs(1), func(p *daly.Profile, args []string) ([]byte, error) {
			v, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid percent %q", args[0])
			}
			return daly.SetSOC(p, v)
		}),
		leaf("charging <on|off>", "Switch charging MOS", cobra.ExactArgs(1), func(p *daly.Profile, args []string) ([]byte, error) {
			on, err := parseOnOff(args[0])
			if err != nil {
				return nil, err
			}
			return daly.SetChargingMOS(p, on)
		}),
		leaf("discharging <on|off>", "Switch discharging MOS", cobra.ExactArgs(1), func(p *daly.Profile, args []string) ([]byte, error) {
			on, err := parseOnOff(args[0])
			if err != nil {
				return nil, err
			}
			return daly.SetDischargingMOS(p, on)
		}),
		leaf("request <status|settings|versions|password|cell_info>", "Status and info requests", cobra.ExactArgs(1), func(p *daly.Profile, args []string) ([]byte, error) {
			switch args[0] {
			case "status":
				return daly.RequestStatus(p)
			case "settings":
				return daly.RequestSettings(p)
			case "versions":
				return daly.RequestVersions(p)
			case "password":
				return daly.RequestPassword(p)
			case "cell_info":
				return daly.RequestCellInfo(p)
			}
			return nil, fmt.Errorf("unknown request %q", args[0])
		}),
	)
	return cmd
}
