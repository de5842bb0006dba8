package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/myshdb/clusteradm/internal/engine"
	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
	"github.com/myshdb/clusteradm/internal/precondition"
	"github.com/myshdb/clusteradm/internal/recovery"
)

var addInstanceCmd = &cobra.Command{
	Use:          "add-instance [cluster-name] [target-endpoint]",
	Short:        "Add a new instance to an existing cluster",
	SilenceUsage: true,
	Long: `Add a new instance to a cluster: checks the instance isn't already
managed, creates a dedicated replication recovery account, starts Group
Replication on the target, waits for it to catch up through distributed
recovery, and records it in the cluster metadata.`,
	Args: cobra.ExactArgs(2),
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
			return fmt.Errorf("add-instance: looking up cluster %q: %w", clusterName, err)
		}

		targetCfg := connectionConfigFromFlags()
		host, port, perr := splitEndpoint(targetEndpoint)
		if perr != nil {
			return perr
		}
		targetCfg.Host, targetCfg.Port = host, port
		target, err := mysqlsess.Connect(ctx, targetCfg)
		if err != nil {
			return fmt.Errorf("add-instance: connecting to target %s: %w", targetEndpoint, err)
		}
		defer target.Close()

		if isDryRun() {
			fmt.Printf("would add %s to cluster %q\n", targetEndpoint, clusterName)
			return nil
		}

		joiner := engine.NewJoiner(store, precondition.New(store), recovery.NewAccountManager(store), viper.GetBool("verbose"))

		opts := engine.JoinOptions{
			Interactive: viper.GetBool("interactive"),
		}
		if m, _ := cmd.Flags().GetString("recovery-method"); m != "" {
			opts.RecoveryMethod = metadata.RecoveryMethod(m)
		}
		opts.CloneDisabled, _ = cmd.Flags().GetBool("clone-disabled")
		opts.Label, _ = cmd.Flags().GetString("label")
		opts.IPAllowlist, _ = cmd.Flags().GetString("ip-allowlist")

		result, err := joiner.AddInstance(ctx, primary, target, cluster, opts)
		if err != nil {
			return fmt.Errorf("add-instance: %w", err)
		}

		newRendererFromFlags().RenderOperationResult(result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addInstanceCmd)
	addInstanceCmd.Flags().String("recovery-method", "", "Recovery method to use: clone or incremental (auto-chosen if omitted)")
	addInstanceCmd.Flags().Bool("clone-disabled", false, "Never fall back to clone recovery")
	addInstanceCmd.Flags().String("label", "", "Human-readable label for the new member")
	addInstanceCmd.Flags().String("ip-allowlist", "", "Comma-separated allowlist of IPs/subnets for Group Replication")
}
