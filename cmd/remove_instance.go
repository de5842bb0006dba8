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

var removeInstanceCmd = &cobra.Command{
	Use:          "remove-instance [cluster-name] [target-endpoint]",
	Short:        "Remove an instance from a cluster",
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
			return fmt.Errorf("remove-instance: looking up cluster %q: %w", clusterName, err)
		}

		force := viper.GetBool("force")

		var target *mysqlsess.Session
		targetCfg := connectionConfigFromFlags()
		host, port, perr := splitEndpoint(targetEndpoint)
		if perr != nil {
			return perr
		}
		targetCfg.Host, targetCfg.Port = host, port
		target, err = mysqlsess.Connect(ctx, targetCfg)
		if err != nil {
			if !force {
				return fmt.Errorf("remove-instance: connecting to target %s: %w (use --force to remove an unreachable member)", targetEndpoint, err)
			}
			target = nil
		} else {
			defer target.Close()
		}

		if isDryRun() {
			fmt.Printf("would remove %s from cluster %q\n", targetEndpoint, clusterName)
			return nil
		}

		joiner := engine.NewJoiner(store, precondition.New(store), recovery.NewAccountManager(store), viper.GetBool("verbose"))
		result, err := joiner.RemoveInstance(ctx, primary, cluster, target, targetEndpoint, force)
		if err != nil {
			return fmt.Errorf("remove-instance: %w", err)
		}

		newRendererFromFlags().RenderOperationResult(result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeInstanceCmd)
}
