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

var setPrimaryInstanceCmd = &cobra.Command{
	Use:          "set-primary-instance [cluster-name] [candidate-endpoint]",
	Short:        "Promote a secondary to primary in a single-primary cluster",
	SilenceUsage: true,
	Args:         cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterName, candidateEndpoint := args[0], args[1]
		ctx := context.Background()

		primary, err := connectFromFlags(ctx)
		if err != nil {
			return err
		}
		defer primary.Close()

		store := newMetadataStore(primary)
		cluster, err := store.GetClusterByName(ctx, clusterName)
		if err != nil {
			return fmt.Errorf("set-primary-instance: looking up cluster %q: %w", clusterName, err)
		}

		candCfg := connectionConfigFromFlags()
		host, port, perr := splitEndpoint(candidateEndpoint)
		if perr != nil {
			return perr
		}
		candCfg.Host, candCfg.Port = host, port
		candidate, err := mysqlsess.Connect(ctx, candCfg)
		if err != nil {
			return fmt.Errorf("set-primary-instance: connecting to candidate %s: %w", candidateEndpoint, err)
		}
		defer candidate.Close()

		if isDryRun() {
			fmt.Printf("would promote %s to primary of cluster %q\n", candidateEndpoint, clusterName)
			return nil
		}

		joiner := engine.NewJoiner(store, precondition.New(store), recovery.NewAccountManager(store), viper.GetBool("verbose"))
		result, err := joiner.SetPrimaryInstance(ctx, primary, cluster, candidate)
		if err != nil {
			return fmt.Errorf("set-primary-instance: %w", err)
		}

		newRendererFromFlags().RenderOperationResult(result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setPrimaryInstanceCmd)
}
