package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taoyao-code/daly-bms/internal/protocol/daly"
	"github.com/taoyao-code/daly-bms/internal/replay"
)

type decodeOptions struct {
	fields    []string
	delimiter string
	asJSON    bool
}

func newDecodeCmd(profile func() (*daly.Profile, error)) *cobra.Command {
	var opts decodeOptions
	cmd := &cobra.Command{
		Use:   "decode [hex...]",
		Short: "Decode notifications (from args, or one per line on stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := profile()
			if err != nil {
				return err
			}
			engine, err := newEngine(p, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) > 0 {
				for _, a := range args {
					if err := decodeOne(out, engine, a, opts.asJSON); err != nil {
						return err
					}
				}
				return nil
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				if err := decodeOne(out, engine, line, opts.asJSON); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
				}
			}
			return scanner.Err()
		},
	}
	cmd.Flags().StringSliceVar(&opts.fields, "fields", nil, "only print fields matching these globs")
	cmd.Flags().StringVar(&opts.delimiter, "delimiter", ";", "alarm name delimiter")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print readings as JSON")
	return cmd
}

func newEngine(p *daly.Profile, opts decodeOptions) (*daly.Engine, error) {
	engineOpts := []daly.Option{daly.WithAlarmDelimiter(opts.delimiter)}
	if len(opts.fields) > 0 {
		sel, err := daly.NewFieldSelector(opts.fields)
		if err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, daly.WithFields(sel))
	}
	return daly.NewEngine(p, engineOpts...), nil
}

func decodeOne(out io.Writer, engine *daly.Engine, text string, asJSON bool) error {
	raw, err := replay.ParseHex(text)
	if err != nil {
		return err
	}
	f, r, err := engine.Process(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", daly.ErrorLabel(err), err)
	}
	if asJSON {
		b, err := json.Marshal(struct {
			Kind    string       `json:"kind"`
			Reading daly.Reading `json:"reading"`
		}{f.Kind.String(), r})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil
	}
	printReading(out, f.Kind.String(), r)
	return nil
}

func printReading(out io.Writer, kind string, r daly.Reading) {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	fmt.Fprintf(out, "# %s (%d fields)\n", kind, len(names))
	for _, k := range names {
		fmt.Fprintf(out, "%s = %s\n", k, r[k])
	}
}
