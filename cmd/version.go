package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print clusteradm version and supported MySQL versions",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "clusteradm %s (commit: %s, built: %s)\n\n", Version, CommitSHA, BuildDate)
		fmt.Fprintln(out, "Supported MySQL versions:")
		fmt.Fprintln(out, "  • MySQL 8.0.0 – 8.0.x")
		fmt.Fprintln(out, "  • MySQL 8.4 LTS")
		fmt.Fprintln(out, "  • Group Replication single-primary and multi-primary groups")
		fmt.Fprintln(out, "  • ClusterSets (8.0.27+ required for the MySQL communication stack)")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "MySQL 5.7 is not supported (EOL October 2023).")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
