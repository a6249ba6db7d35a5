package util

import (
	"strings"

	"github.com/ValentinKolb/dsock/rpc/common"
	"github.com/ValentinKolb/dsock/rpc/transport"
	"github.com/ValentinKolb/dsock/rpc/transport/tcp"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (DSOCK_<flag>)
	EnvPrefix = "dsock"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupSocketFlags adds the socket tuning flags to a command
func SetupSocketFlags(cmd *cobra.Command) {
	key := "buffer-size"
	cmd.PersistentFlags().Int(key, 64, WrapString("The size of the socket send and receive buffers (in KB)"))

	key = "keepalive-idle"
	cmd.PersistentFlags().Int(key, 60, WrapString("Idle time before the first keep-alive probe is sent (in seconds)"))

	key = "keepalive-interval"
	cmd.PersistentFlags().Int(key, 1, WrapString("Time between keep-alive probes (in seconds)"))
}

// SetupRPCClientFlags adds common connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of a single request (0 = no timeout)"))

	key = "endpoints"
	cmd.PersistentFlags().String(key, "localhost:9000", WrapString("The addresses of the cluster nodes as a comma-separated list of host:port"))

	key = "connect-timeout"
	cmd.PersistentFlags().Int(key, 1000, WrapString("The connect timeout in milliseconds (negative = no timeout)"))

	key = "strict-deadline"
	cmd.PersistentFlags().Bool(key, false, WrapString("Use the connect timeout as a single budget for all addresses of a host instead of per address"))

	key = "conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry the request"))

	SetupSocketFlags(cmd)
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetSocketConfig reads the socket tuning from viper
func GetSocketConfig() common.SocketConf {
	return common.SocketConf{
		BufferSize:           viper.GetInt("buffer-size") * 1024,
		KeepAliveIdleSec:     viper.GetInt("keepalive-idle"),
		KeepAliveIntervalSec: viper.GetInt("keepalive-interval"),
		StrictDeadline:       viper.GetBool("strict-deadline"),
	}
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Endpoints:              SplitList(viper.GetString("endpoints")),
		TimeoutSecond:          viper.GetInt("timeout"),
		ConnectTimeoutMs:       viper.GetInt("connect-timeout"),
		RetryCount:             viper.GetInt("retries"),
		ConnectionsPerEndpoint: viper.GetInt("conn-per-endpoint"),
		Socket:                 GetSocketConfig(),
	}
}

// GetTransport creates the client transport
func GetTransport() transport.IRPCClientTransport {
	return tcp.NewTCPClientTransport()
}

// GetShardID retrieves the configured shard ID
func GetShardID() uint64 {
	return uint64(viper.GetInt("shard"))
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// SplitList splits a comma-separated list and drops empty entries
func SplitList(list string) []string {
	var result []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
