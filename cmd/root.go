package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
	"github.com/myshdb/clusteradm/internal/output"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "clusteradm",
	Short: "Lifecycle control plane for MySQL InnoDB clusters and cluster sets",
	Long: `clusteradm manages the full lifecycle of a MySQL Group Replication
cluster and of ClusterSets built from them: bootstrapping, joining and
rejoining instances, rebooting from a complete outage, promoting a new
primary, and coordinating replica clusters across a ClusterSet.

It follows the same cluster metadata conventions as MySQL Shell's
AdminAPI, so a cluster it manages can be inspected with either tool.`,
}

// Execute is called by main.main(). It adds all child commands to the root
// command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.clusteradm/config.yaml)")
	rootCmd.PersistentFlags().StringP("host", "H", "", "MySQL host")
	rootCmd.PersistentFlags().IntP("port", "P", 3306, "MySQL port")
	rootCmd.PersistentFlags().StringP("user", "u", "", "MySQL user")
	rootCmd.PersistentFlags().StringP("password", "p", "", "MySQL password (will prompt if flag present without value)")
	rootCmd.PersistentFlags().Lookup("password").NoOptDefVal = "" // Allow -p without value to trigger prompt
	rootCmd.PersistentFlags().StringP("socket", "S", "", "Unix socket path")
	rootCmd.PersistentFlags().String("tls", "preferred", "TLS mode: disabled, preferred, required, skip-verify, custom")
	rootCmd.PersistentFlags().String("tls-ca", "", "path to CA certificate (required when --tls=custom)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "Output format: text, plain, json, markdown")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show additional debug info")
	rootCmd.PersistentFlags().Bool("dry-run", false, "Print what would be done without changing anything")
	rootCmd.PersistentFlags().Bool("force", false, "Skip confirmations and proceed past recoverable precondition failures")
	rootCmd.PersistentFlags().Bool("interactive", false, "Prompt for choices that would otherwise fail (e.g. recovery method)")

	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	viper.BindPFlag("password", rootCmd.PersistentFlags().Lookup("password"))
	viper.BindPFlag("socket", rootCmd.PersistentFlags().Lookup("socket"))
	viper.BindPFlag("tls", rootCmd.PersistentFlags().Lookup("tls"))
	viper.BindPFlag("tls_ca", rootCmd.PersistentFlags().Lookup("tls-ca"))
	viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("dry_run", rootCmd.PersistentFlags().Lookup("dry-run"))
	viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))
	viper.BindPFlag("interactive", rootCmd.PersistentFlags().Lookup("interactive"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		viper.AddConfigPath(home + "/.clusteradm")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CLUSTERADM")
	viper.AutomaticEnv()

	// Silently ignore missing config file — it's optional
	if err := viper.ReadInConfig(); err == nil {
		if !rootCmd.PersistentFlags().Changed("host") && viper.IsSet("connections.default.host") {
			viper.Set("host", viper.GetString("connections.default.host"))
		}
		if !rootCmd.PersistentFlags().Changed("port") && viper.IsSet("connections.default.port") {
			viper.Set("port", viper.GetInt("connections.default.port"))
		}
		if !rootCmd.PersistentFlags().Changed("user") && viper.IsSet("connections.default.user") {
			viper.Set("user", viper.GetString("connections.default.user"))
		}
		if !rootCmd.PersistentFlags().Changed("format") && viper.IsSet("defaults.format") {
			viper.Set("format", viper.GetString("defaults.format"))
		}
	}
}

// connectionConfigFromFlags builds a ConnectionConfig from the bound
// global flags, defaulting host/user the way connect/plan did in the
// previous generation of this tool and prompting for a password when
// none was supplied.
func connectionConfigFromFlags() mysqlsess.ConnectionConfig {
	cfg := mysqlsess.ConnectionConfig{
		Host:     viper.GetString("host"),
		Port:     viper.GetInt("port"),
		User:     viper.GetString("user"),
		Password: viper.GetString("password"),
		Socket:   viper.GetString("socket"),
		TLSMode:  viper.GetString("tls"),
		TLSCA:    viper.GetString("tls_ca"),
	}
	if cfg.Host == "" && cfg.Socket == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.User == "" {
		cfg.User = "root"
	}
	if cfg.Password == "" {
		cfg.Password = mysqlsess.PromptPassword()
	}
	return cfg
}

func connectFromFlags(ctx context.Context) (*mysqlsess.Session, error) {
	cfg := connectionConfigFromFlags()
	sess, err := mysqlsess.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return sess, nil
}

func newMetadataStore(sess *mysqlsess.Session) *metadata.Store {
	return metadata.New(sess)
}

func newRendererFromFlags() output.Renderer {
	return output.NewRenderer(viper.GetString("format"), os.Stdout)
}

func isDryRun() bool { return viper.GetBool("dry_run") }

// splitEndpoint parses a "host:port" endpoint as used throughout the CLI
// to name cluster members on the command line.
func splitEndpoint(endpoint string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return "", 0, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in endpoint %q: %w", endpoint, err)
	}
	return host, port, nil
}

