package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/myshdb/clusteradm/internal/engine"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
	"github.com/myshdb/clusteradm/internal/precondition"
	"github.com/myshdb/clusteradm/internal/recovery"
)

var rejoinInstanceCmd = &cobra.Command{
	Use:          "rejoin-instance [cluster-name] [target-endpoint]",
	Short:        "Rejoin an instance that dropped out of the cluster's group",
	SilenceUsage: true,
	Args:         cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterName, targetEndpoint := args[0], args[1]
		ctx := context.Background()

		primary, err := connectFromFlags(ctx)
		if err != nil {
			return err
		}
		defer primary.Close()

		store := newMetadataStore(primary)
		cluster, err := store.GetClusterByName(ctx, clusterName)
		if err != nil {
			return fmt.Errorf("rejoin-instance: looking up cluster %q: %w", clusterName, err)
		}

		targetCfg := connectionConfigFromFlags()
		host, port, perr := splitEndpoint(targetEndpoint)
		if perr != nil {
			return perr
		}
		targetCfg.Host, targetCfg.Port = host, port
		target, err := mysqlsess.Connect(ctx, targetCfg)
		if err != nil {
			return fmt.Errorf("rejoin-instance: connecting to target %s: %w", targetEndpoint, err)
		}
		defer target.Close()

		joiner := engine.NewJoiner(store, precondition.New(store), recovery.NewAccountManager(store), viper.GetBool("verbose"))

		rejoinable, err := joiner.CheckRejoinable(ctx, target, cluster)
		if err != nil {
			return fmt.Errorf("rejoin-instance: %w", err)
		}
		if !rejoinable {
			return fmt.Errorf("rejoin-instance: %s is not a recorded member of %q or is already ONLINE; use add-instance for an instance the cluster does not know", targetEndpoint, clusterName)
		}

		if isDryRun() {
			fmt.Printf("would rejoin %s to cluster %q\n", targetEndpoint, clusterName)
			return nil
		}

		result, err := joiner.RejoinInstance(ctx, primary, target, cluster)
		if err != nil {
			return fmt.Errorf("rejoin-instance: %w", err)
		}

		newRendererFromFlags().RenderOperationResult(result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rejoinInstanceCmd)
}
