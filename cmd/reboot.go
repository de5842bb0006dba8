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

var rebootCmd = &cobra.Command{
	Use:          "reboot-cluster [cluster-name] [endpoints...]",
	Short:        "Bring a cluster back up after every member went OFFLINE",
	SilenceUsage: true,
	Long: `Reboot a cluster from a complete outage: connects to every listed
candidate endpoint, verifies none still reports an active group, picks the
candidate with the most advanced GTID set as the new seed, bootstraps a
fresh group there, and rejoins the remaining candidates.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterName := args[0]
		endpoints := args[1:]
		ctx := context.Background()

		baseCfg := connectionConfigFromFlags()
		candidates := map[string]*mysqlsess.Session{}
		for _, ep := range endpoints {
			cfg := baseCfg
			host, port, err := splitEndpoint(ep)
			if err != nil {
				return err
			}
			cfg.Host, cfg.Port = host, port
			sess, err := mysqlsess.Connect(ctx, cfg)
			if err != nil {
				fmt.Printf("warning: could not connect to %s: %v\n", ep, err)
				continue
			}
			defer sess.Close()
			candidates[ep] = sess
		}
		if len(candidates) == 0 {
			return fmt.Errorf("reboot-cluster: no candidate instance was reachable")
		}

		// Any reachable candidate can read the cluster's metadata row; GR
		// being down doesn't take the metadata schema itself offline.
		var primary *mysqlsess.Session
		for _, sess := range candidates {
			primary = sess
			break
		}
		store := newMetadataStore(primary)
		cluster, err := store.GetClusterByName(ctx, clusterName)
		if err != nil {
			return fmt.Errorf("reboot-cluster: looking up cluster %q: %w", clusterName, err)
		}

		joiner := engine.NewJoiner(store, precondition.New(store), recovery.NewAccountManager(store), viper.GetBool("verbose"))
		opts := engine.RebootOptions{Force: viper.GetBool("force"), DryRun: isDryRun()}
		opts.SwitchCommunicationStack, _ = cmd.Flags().GetBool("switch-communication-stack")
		opts.Primary, _ = cmd.Flags().GetString("primary")

		result, err := joiner.RebootClusterFromCompleteOutage(ctx, cluster, candidates, opts)
		if err != nil {
			return fmt.Errorf("reboot-cluster: %w", err)
		}

		newRendererFromFlags().RenderOperationResult(result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rebootCmd)
	rebootCmd.Flags().Bool("switch-communication-stack", false, "Switch the group's communication stack while rebooting (requires --force)")
	rebootCmd.Flags().String("primary", "", "Force a specific endpoint to be used as the reboot seed instead of the automatically-picked most-advanced candidate")
}
