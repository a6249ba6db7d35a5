package send

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dsock/cmd/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("cmd")

var (
	SendCmd = &cobra.Command{
		Use:   "send <payload>",
		Short: "Send a single request to the cluster nodes",
		Long: `Connects to the endpoints, sends the payload as one framed request to the given shard and prints the response.
The configuration can be set via command line flags or environment variables. The format of the environment variables is DSOCK_<flag> (e.g. DSOCK_ENDPOINTS=localhost:9000)`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return util.BindCommandFlags(cmd)
		},
		RunE: run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	util.SetupRPCClientFlags(SendCmd)

	key := "shard"
	SendCmd.Flags().Uint64(key, 100, util.WrapString("ID of the shard the request is addressed to"))

	key = "stats"
	SendCmd.Flags().Bool(key, false, util.WrapString("Print the per-endpoint request statistics after the response"))
}

func run(_ *cobra.Command, args []string) error {
	conf := util.GetClientConfig()

	t := util.GetTransport()
	if err := t.Connect(*conf); err != nil {
		return err
	}
	defer t.Close()

	shardID := util.GetShardID()
	Logger.Debugf("Sending %d bytes to shard %d", len(args[0]), shardID)

	resp, err := t.Send(shardID, []byte(args[0]))
	if err != nil {
		return err
	}

	fmt.Println(string(resp))

	if viper.GetBool("stats") {
		for _, s := range t.Stats() {
			fmt.Fprintf(os.Stderr, "%s: %d ok, %d failed, %d reconnects\n", s.Endpoint, s.Successes, s.Failures, s.Reconnects)
		}
	}
	return nil
}
