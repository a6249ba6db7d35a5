package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dsock/cmd/util"
	"github.com/ValentinKolb/dsock/rpc/common"
	"github.com/ValentinKolb/dsock/rpc/transport/tcp"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("cmd")

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start an echo node",
		Long:    `Start a node that answers every framed request with its payload. The configuration can be set via command line flags or environment variables. The format of the environment variables is DSOCK_<flag> (e.g. DSOCK_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitClientConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:9000", cmdUtil.WrapString("The address on which the node will listen (host:port)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for reading a request and writing its response (0 = no timeout)"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, 4, cmdUtil.WrapString("How many requests of a single connection are processed in parallel"))

	cmdUtil.SetupSocketFlags(ServeCmd)
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MaxWorkersPerConn = viper.GetInt("workers")
	serveCmdConfig.Socket = cmdUtil.GetSocketConfig()
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}
	if _, _, err := tcp.SplitEndpoint(serveCmdConfig.Endpoint); err != nil {
		return err
	}
	return nil
}

// run starts the echo node and blocks until it is interrupted
func run(_ *cobra.Command, _ []string) error {
	fmt.Println(serveCmdConfig.String())

	t := tcp.NewTCPServerTransport(serveCmdConfig.Socket.Options().BufferSize, serveCmdConfig.MaxWorkersPerConn)
	t.RegisterHandler(echo)

	// stop the node on SIGINT or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if sig, ok := <-sigCh; ok {
			Logger.Infof("Received %s, shutting down", sig)
			t.Close()
		}
	}()

	return t.Listen(*serveCmdConfig)
}

// echo answers a request with its payload
func echo(_ uint64, req []byte) []byte {
	return req
}
