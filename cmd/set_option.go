package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/routing"
)

var setRoutingOptionCmd = &cobra.Command{
	Use:          "set-routing-option [cluster-set-name] [key] [value]",
	Short:        "Set a router or routing option for a cluster set",
	SilenceUsage: true,
	Long: `Sets a direct routing option (e.g. read_only_targets,
use_replica_primary_as_rw, routing_guideline) or a free-form tag:<name>
option. Built-in boolean tags accept common truthy/falsy spellings;
unrecognized tags are stored verbatim.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		setName, key, value := args[0], args[1], args[2]
		ctx := context.Background()

		sess, err := connectFromFlags(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		store := newMetadataStore(sess)
		cs, err := store.GetClusterSetByName(ctx, setName)
		if err != nil {
			return fmt.Errorf("set-routing-option: %w", err)
		}
		mgr := routing.New(store)

		if isDryRun() {
			fmt.Printf("would set routing option %q=%q for cluster set %q\n", key, value, setName)
			return nil
		}

		opts := &metadata.RoutingOptions{ClusterSetID: &cs.ID}
		if err := mgr.SetRoutingOption(ctx, opts, key, value); err != nil {
			return fmt.Errorf("set-routing-option: %w", err)
		}
		fmt.Printf("routing option %q set to %v for cluster set %q\n", key, opts.Options[key], setName)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setRoutingOptionCmd)
}
