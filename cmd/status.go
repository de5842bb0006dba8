package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/myshdb/clusteradm/internal/grprobe"
)

var statusCmd = &cobra.Command{
	Use:          "status [cluster-name]",
	Short:        "Show Group Replication status for the cluster the connection belongs to",
	SilenceUsage: true,
	Long: `Connect to a MySQL instance, probe its Group Replication state, and
report group membership, primary/secondary roles, and overall availability.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		sess, err := connectFromFlags(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		snap, err := grprobe.Probe(ctx, sess, viper.GetBool("verbose"))
		if err != nil {
			return fmt.Errorf("status: probing group replication: %w", err)
		}
		if snap == nil {
			fmt.Fprintln(os.Stderr, "this instance is not a member of a Group Replication group")
			return nil
		}

		name := "default"
		if len(args) == 1 {
			name = args[0]
		}

		renderer := newRendererFromFlags()
		renderer.RenderStatus(name, snap)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
