package probe

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ValentinKolb/dsock/cmd/util"
	"github.com/ValentinKolb/dsock/lib/socket"
	"github.com/ValentinKolb/dsock/rpc/common"
	"github.com/ValentinKolb/dsock/rpc/transport/tcp"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("cmd")

const (
	statusConnected = "connected"
	statusTimeout   = "timeout"
	statusError     = "error"
)

var (
	ProbeCmd = &cobra.Command{
		Use:   "probe",
		Short: "Check the connection to the cluster nodes",
		Long: `Connects to every endpoint with the configured connect timeout and socket tuning.
For each endpoint the result (connected, timeout or error), the socket mode and the connect latency is printed.
The configuration can be set via command line flags or environment variables. The format of the environment variables is DSOCK_<flag> (e.g. DSOCK_CONNECT_TIMEOUT=500)`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return util.BindCommandFlags(cmd)
		},
		RunE: run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	util.SetupRPCClientFlags(ProbeCmd)

	key := "rounds"
	ProbeCmd.Flags().Int(key, 1, util.WrapString("How many times to connect to each endpoint"))

	key = "metrics"
	ProbeCmd.Flags().Bool(key, false, util.WrapString("Print the socket metrics in Prometheus text format"))
}

// probeResult holds the outcome of probing one endpoint
type probeResult struct {
	endpoint  string
	status    string
	err       error
	blocking  bool
	rounds    int
	connected int
	latency   gometrics.Histogram // connect latency in microseconds
}

func run(_ *cobra.Command, _ []string) error {
	conf := util.GetClientConfig()
	if len(conf.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	rounds := max(viper.GetInt("rounds"), 1)
	results := make([]probeResult, len(conf.Endpoints))

	// probe all endpoints concurrently
	p := pool.New().WithMaxGoroutines(len(conf.Endpoints))
	for i, endpoint := range conf.Endpoints {
		p.Go(func() {
			results[i] = probeEndpoint(endpoint, conf, rounds)
		})
	}
	p.Wait()

	printResults(os.Stdout, results)

	if viper.GetBool("metrics") {
		fmt.Println()
		socket.WriteMetrics(os.Stdout)
	}

	for _, res := range results {
		if res.connected > 0 {
			return nil
		}
	}
	return fmt.Errorf("no endpoint reachable")
}

// probeEndpoint connects rounds times to the endpoint. The status of the last
// round is reported.
func probeEndpoint(endpoint string, conf *common.ClientConfig, rounds int) probeResult {
	res := probeResult{
		endpoint: endpoint,
		rounds:   rounds,
		latency:  gometrics.NewHistogram(gometrics.NewUniformSample(1028)),
	}

	host, port, err := tcp.SplitEndpoint(endpoint)
	if err != nil {
		res.status = statusError
		res.err = err
		return res
	}

	client := socket.NewTCPClientWithOptions(conf.Socket.Options())
	defer client.Close()

	for i := 0; i < rounds; i++ {
		start := time.Now()
		ok, err := client.Connect(host, port, conf.ConnectTimeout())
		elapsed := time.Since(start)

		switch {
		case err != nil:
			Logger.Debugf("Probe %d/%d of %s failed: %v", i+1, rounds, endpoint, err)
			res.status = statusError
			res.err = err
		case !ok:
			Logger.Debugf("Probe %d/%d of %s timed out after %s", i+1, rounds, endpoint, elapsed)
			res.status = statusTimeout
			res.err = nil
		default:
			res.status = statusConnected
			res.err = nil
			res.blocking = client.IsBlocking()
			res.connected++
			res.latency.Update(elapsed.Microseconds())
		}

		client.Close()
	}
	return res
}

// printResults writes one line per endpoint
func printResults(w io.Writer, results []probeResult) {
	fmt.Fprintf(w, "%-28s %-10s %-13s %-7s %10s %10s %10s\n", "ENDPOINT", "STATUS", "MODE", "OK", "P50", "P99", "MAX")

	for _, res := range results {
		mode := "-"
		if res.connected > 0 {
			mode = "non-blocking"
			if res.blocking {
				mode = "blocking"
			}
		}

		p50, p99, maxLatency := "-", "-", "-"
		if res.latency.Count() > 0 {
			p50 = formatMicros(res.latency.Percentile(0.5))
			p99 = formatMicros(res.latency.Percentile(0.99))
			maxLatency = formatMicros(float64(res.latency.Max()))
		}

		fmt.Fprintf(w, "%-28s %-10s %-13s %-7s %10s %10s %10s\n",
			res.endpoint, res.status, mode, fmt.Sprintf("%d/%d", res.connected, res.rounds), p50, p99, maxLatency)

		if res.err != nil {
			fmt.Fprintf(w, "  %s\n", res.err)
		}
	}
}

func formatMicros(us float64) string {
	return (time.Duration(us) * time.Microsecond).String()
}
