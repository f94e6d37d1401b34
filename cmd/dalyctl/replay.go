package main

import (
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/taoyao-code/daly-bms/internal/protocol/daly"
	"github.com/taoyao-code/daly-bms/internal/replay"
)

const expectTolerance = 1e-6

func newReplayCmd(profile func() (*daly.Profile, error)) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "replay <capture.yaml>",
		Short: "Decode every notification of a capture and merge them into a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := replay.Load(args[0])
			if err != nil {
				return err
			}
			// 抓包自带 profile，除非显式指定 --profile
			var p *daly.Profile
			if c.Profile != "" && !cmd.Flags().Changed("profile") {
				p, err = daly.LookupProfile(c.Profile)
			} else {
				p, err = profile()
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			engine := daly.NewEngine(p)
			snap := daly.NewSnapshot()
			failures := 0
			for i, n := range c.Notifications {
				raw, _ := n.Bytes()
				label := n.Label
				if label == "" {
					label = fmt.Sprintf("#%d", i+1)
				}
				f, r, err := engine.Process(raw)
				if err != nil {
					fmt.Fprintf(out, "%s: dropped (%s) %v\n", label, daly.ErrorLabel(err), err)
					if check && len(n.Expect) > 0 {
						failures++
					}
					continue
				}
				snap.Merge(r)
				fmt.Fprintf(out, "%s: %s, %d fields\n", label, f.Kind, r.Len())
				if check {
					failures += checkExpect(cmd, label, r, n.Expect)
				}
			}

			fmt.Fprintf(out, "snapshot: %d fields\n", snap.Len())
			if check && failures > 0 {
				return fmt.Errorf("%d expectation(s) failed", failures)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "compare decoded values with each notification's expect map")
	return cmd
}

func checkExpect(cmd *cobra.Command, label string, r daly.Reading, expect map[string]float64) int {
	names := make([]string, 0, len(expect))
	for k := range expect {
		names = append(names, k)
	}
	sort.Strings(names)

	failed := 0
	for _, k := range names {
		v, ok := r[k]
		got, numeric := v.Number()
		switch {
		case !ok:
			fmt.Fprintf(cmd.OutOrStdout(), "  FAIL %s.%s: missing\n", label, k)
			failed++
		case !numeric:
			fmt.Fprintf(cmd.OutOrStdout(), "  FAIL %s.%s: %s is not numeric\n", label, k, v)
			failed++
		case math.Abs(got-expect[k]) > expectTolerance:
			fmt.Fprintf(cmd.OutOrStdout(), "  FAIL %s.%s: got %v, want %v\n", label, k, got, expect[k])
			failed++
		}
	}
	return failed
}

// newSimulateCmd 生成模拟状态通知，可写成抓包文件供 replay 使用
func newSimulateCmd(profile func() (*daly.Profile, error)) *cobra.Command {
	var (
		sp     replay.StatusParams
		output string
		label  string
		delay  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Synthesize a status notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := profile()
			if err != nil {
				return err
			}
			raw, err := replay.SimulateStatus(p, sp)
			if err != nil {
				return err
			}
			if output == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%X\n", raw)
				return nil
			}

			c := &replay.Capture{Profile: p.Name}
			if existing, err := replay.Load(output); err == nil {
				c = existing
			}
			c.Notifications = append(c.Notifications, replay.Notification{
				Label: label,
				Hex:   fmt.Sprintf("%X", raw),
				Delay: delay,
			})
			data, err := c.Marshal()
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "appended %s to %s (%d notifications)\n", label, output, len(c.Notifications))
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64SliceVar(&sp.Cells, "cells", []float64{3.3, 3.3, 3.3, 3.3}, "cell voltages in V")
	f.Float64SliceVar(&sp.Temperatures, "temps", []float64{25}, "temperatures in °C")
	f.Float64Var(&sp.Current, "current", 0, "current in A (negative = discharging)")
	f.Float64Var(&sp.SOC, "soc", 50, "state of charge in %")
	f.Float64Var(&sp.Capacity, "capacity", 100, "remaining capacity in Ah")
	f.IntVar(&sp.Cycles, "cycles", 0, "charging cycles")
	f.BoolVar(&sp.Charging, "charging", true, "charging MOS on")
	f.BoolVar(&sp.Discharging, "discharging", true, "discharging MOS on")
	f.BoolVar(&sp.Balancing, "balancing", false, "balancer active")
	f.Uint8Var(&sp.AlarmMask, "alarms", 0, "alarm bitmask")
	f.StringVarP(&output, "output", "o", "", "append to this capture file instead of printing")
	f.StringVar(&label, "label", "simulated", "notification label")
	f.DurationVar(&delay, "delay", 0, "replay delay before this notification")
	return cmd
}
