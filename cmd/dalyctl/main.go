package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taoyao-code/daly-bms/internal/protocol/daly"
)

// dalyctl 离线工具：解码通知、构造命令、回放与模拟抓包
func newRootCmd() *cobra.Command {
	var profileName string

	root := &cobra.Command{
		Use:           "dalyctl",
		Short:         "Daly BMS protocol toolbox",
		Long:          "dalyctl decodes Daly BMS notifications, builds command frames and replays captures without hardware.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&profileName, "profile", "p", daly.DefaultProfile, "revision profile")

	profile := func() (*daly.Profile, error) {
		return daly.LookupProfile(profileName)
	}

	root.AddCommand(
		newDecodeCmd(profile),
		newBuildCmd(profile),
		newProfilesCmd(),
		newReplayCmd(profile),
		newSimulateCmd(profile),
	)
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List known firmware revision profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, name := range daly.ProfileNames() {
				p, err := daly.LookupProfile(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-10s %-14s %s\n", p.Name, p.Shape, p.Description)
			}
			return nil
		},
	}
}
