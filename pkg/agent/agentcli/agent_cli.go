package agentcli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/neuroplastio/neio-input/internal/inputsvc"
	"github.com/neuroplastio/neio-input/pkg/agent"
	"github.com/spf13/cobra"
)

func Main(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	dir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	cmd := NewRootCmd(filepath.Join(dir, "neio-input"))
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}

type agentProvider func() *agent.Agent

type outputFormat string

const (
	outputJSON outputFormat = "json"
	outputYAML outputFormat = "yaml"
)

func (f *outputFormat) String() string {
	return string(*f)
}

func (f *outputFormat) Set(s string) error {
	switch outputFormat(s) {
	case outputJSON, outputYAML:
		*f = outputFormat(s)
		return nil
	}
	return fmt.Errorf("unknown output format %q, expected json or yaml", s)
}

func (f *outputFormat) Type() string {
	return "format"
}

func (f outputFormat) print(cmd *cobra.Command, v any) error {
	var (
		b   []byte
		err error
	)
	switch f {
	case outputYAML:
		b, err = yaml.Marshal(v)
	default:
		b, err = json.MarshalIndent(v, "", "  ")
		b = append(b, '\n')
	}
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(b)
	return err
}

func NewRootCmd(configDir string) *cobra.Command {
	cfg := agent.DefaultConfig(configDir)
	rootCmd := &cobra.Command{
		Use:          "neio-input",
		Short:        "Neuroplast.io Input",
		Long:         `Neuroplast.io Input collects mouse and keyboard events from input devices into per-device channels and drains them on every application tick.`,
		SilenceUsage: true,
	}
	var a *agent.Agent
	agentProvider := func() *agent.Agent {
		return a
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory")
	flags.StringVar(&cfg.DevicesConfig, "devices-config", cfg.DevicesConfig, "virtual devices config file")
	flags.DurationVar(&cfg.TickInterval, "tick-interval", cfg.TickInterval, "interval between two drains of all channels")
	flags.IntVar(&cfg.ChannelCapacity, "channel-capacity", cfg.ChannelCapacity, "number of events a device channel retains between two drains")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "stop after the given duration (0 runs until interrupted)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.BoolVar(&cfg.Evdev, "evdev", cfg.Evdev, "read Linux event devices from /dev/input")
	flags.DurationVar(&cfg.EvdevPollInterval, "evdev-poll-interval", cfg.EvdevPollInterval, "interval between two scans for connected event devices")
	output := outputJSON
	flags.VarP(&output, "output", "o", "output format (json, yaml)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		a, err = agent.NewAgent(cfg)
		return err
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if a == nil {
			return nil
		}
		return a.Close()
	}
	rootCmd.AddCommand(NewRun(agentProvider, &output))
	rootCmd.AddCommand(NewListDevices(agentProvider, &output))
	rootCmd.AddCommand(NewGetDevice(agentProvider, &output))
	return rootCmd
}

func NewRun(agent agentProvider, output *outputFormat) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the input agent",
		Long:  `Run connects input devices and drains their channels until interrupted or until --timeout expires.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := agent()
			if err := a.Run(cmd.Context()); err != nil {
				return err
			}
			return output.print(cmd, a.Totals())
		},
	}
}

func NewListDevices(agent agentProvider, output *outputFormat) *cobra.Command {
	return &cobra.Command{
		Use:   "list-devices",
		Short: "List input devices",
		Long:  `List input devices that have been connected at least once.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := agent().Input().ListDevices()
			if err != nil {
				return err
			}
			return output.print(cmd, devices)
		},
	}
}

func NewGetDevice(agent agentProvider, output *outputFormat) *cobra.Command {
	return &cobra.Command{
		Use:   "get-device <addr>",
		Short: "Get input device",
		Long:  `Get the record of an input device by its address, e.g. virtual/mouse-0 or evdev/event3.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := inputsvc.ParseAddress(args[0])
			if err != nil {
				return err
			}
			dev, err := agent().Input().GetDevice(addr)
			if err != nil {
				return err
			}
			return output.print(cmd, dev)
		},
	}
}
