package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dsock/cmd/probe"
	"github.com/ValentinKolb/dsock/cmd/send"
	"github.com/ValentinKolb/dsock/cmd/serve"
	"github.com/ValentinKolb/dsock/cmd/util"
	"github.com/ValentinKolb/dsock/rpc/common"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dsock",
		Short: "node connection toolkit",
		Long: fmt.Sprintf(`dsock (v%s)

Connects to cluster nodes over TCP with bounded connect timeouts,
address fallback and tuned sockets. Use it to probe nodes, send
framed requests or run a simple echo node.`, Version),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			return common.InitLoggers(level)
		},
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dsock",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dsock v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(probe.ProbeCmd)
	RootCmd.AddCommand(send.SendCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
