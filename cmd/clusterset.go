package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/myshdb/clusteradm/internal/clusterset"
	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
)

var clusterSetCmd = &cobra.Command{
	Use:   "cluster-set",
	Short: "Manage a ClusterSet: a primary cluster and its replica clusters",
}

var clusterSetCreateCmd = &cobra.Command{
	Use:          "create [primary-cluster-name] [cluster-set-name]",
	Short:        "Promote an existing cluster into the primary of a new cluster set",
	SilenceUsage: true,
	Args:         cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterName, setName := args[0], args[1]
		ctx := context.Background()

		sess, err := connectFromFlags(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		store := newMetadataStore(sess)
		cluster, err := store.GetClusterByName(ctx, clusterName)
		if err != nil {
			return fmt.Errorf("cluster-set create: %w", err)
		}
		domain, _ := cmd.Flags().GetString("domain-name")

		if isDryRun() {
			fmt.Printf("would create cluster set %q from cluster %q\n", setName, clusterName)
			return nil
		}

		coord := clusterset.New(store)
		cs, err := coord.CreateClusterSet(ctx, cluster, setName, domain)
		if err != nil {
			return fmt.Errorf("cluster-set create: %w", err)
		}
		fmt.Printf("cluster set %q created with primary cluster %q (id=%d)\n", cs.Name, cluster.Name, cs.ID)
		return nil
	},
}

var clusterSetAddReplicaCmd = &cobra.Command{
	Use:          "add-replica-cluster [cluster-set-name] [replica-cluster-name] [replica-primary-endpoint]",
	Short:        "Attach a standalone cluster to a cluster set as a replica",
	SilenceUsage: true,
	Args:         cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		setName, replicaName, replicaEndpoint := args[0], args[1], args[2]
		ctx := context.Background()

		sess, err := connectFromFlags(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		store := newMetadataStore(sess)
		replica, err := store.GetClusterByName(ctx, replicaName)
		if err != nil {
			return fmt.Errorf("cluster-set add-replica-cluster: %w", err)
		}

		cfg := connectionConfigFromFlags()
		host, port, perr := splitEndpoint(replicaEndpoint)
		if perr != nil {
			return perr
		}
		cfg.Host, cfg.Port = host, port
		replicaPrimary, err := mysqlsess.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("cluster-set add-replica-cluster: connecting to %s: %w", replicaEndpoint, err)
		}
		defer replicaPrimary.Close()

		if isDryRun() {
			fmt.Printf("would add %q to cluster set %q\n", replicaName, setName)
			return nil
		}

		coord := clusterset.New(store)
		csUser, _ := cmd.Flags().GetString("channel-user")
		csPass, _ := cmd.Flags().GetString("channel-password")
		err = coord.AddReplicaCluster(ctx, &metadata.ClusterSet{Name: setName}, replica, replicaPrimary, sess.Endpoint(),
			clusterset.ChannelCredentials{User: csUser, Password: csPass})
		if err != nil {
			return fmt.Errorf("cluster-set add-replica-cluster: %w", err)
		}
		fmt.Printf("cluster %q attached to cluster set %q\n", replicaName, setName)
		return nil
	},
}

var clusterSetStatusCmd = &cobra.Command{
	Use:          "status [cluster-set-name]",
	Short:        "Show global status of every cluster in a cluster set",
	SilenceUsage: true,
	Args:         cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setName := args[0]
		ctx := context.Background()

		sess, err := connectFromFlags(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		status, err := clusterset.Status(ctx, &metadata.ClusterSet{Name: setName}, map[string]*mysqlsess.Session{sess.Endpoint(): sess})
		if err != nil {
			return fmt.Errorf("cluster-set status: %w", err)
		}
		newRendererFromFlags().RenderClusterSetStatus(setName, status)
		return nil
	},
}

var clusterSetRemoveClusterCmd = &cobra.Command{
	Use:          "remove-cluster [replica-cluster-name] [replica-primary-endpoint]",
	Short:        "Detach a replica cluster from its cluster set",
	SilenceUsage: true,
	Args:         cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		replicaName, replicaEndpoint := args[0], args[1]
		ctx := context.Background()

		sess, err := connectFromFlags(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		store := newMetadataStore(sess)
		replica, err := store.GetClusterByName(ctx, replicaName)
		if err != nil {
			return fmt.Errorf("cluster-set remove-cluster: %w", err)
		}

		cfg := connectionConfigFromFlags()
		host, port, perr := splitEndpoint(replicaEndpoint)
		if perr != nil {
			return perr
		}
		cfg.Host, cfg.Port = host, port
		replicaPrimary, err := mysqlsess.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("cluster-set remove-cluster: connecting to %s: %w", replicaEndpoint, err)
		}
		defer replicaPrimary.Close()

		if isDryRun() {
			fmt.Printf("would remove %q from its cluster set\n", replicaName)
			return nil
		}

		coord := clusterset.New(store)
		if err := coord.RemoveCluster(ctx, replica, replicaPrimary, viper.GetBool("force")); err != nil {
			return fmt.Errorf("cluster-set remove-cluster: %w", err)
		}
		fmt.Printf("cluster %q removed from its cluster set\n", replicaName)
		return nil
	},
}

var clusterSetRejoinClusterCmd = &cobra.Command{
	Use:          "rejoin-cluster [cluster-set-name] [replica-cluster-name] [replica-primary-endpoint] [primary-endpoint]",
	Short:        "Reattach a replica cluster whose managed channel dropped",
	SilenceUsage: true,
	Args:         cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		setName, replicaName, replicaEndpoint, primaryEndpoint := args[0], args[1], args[2], args[3]
		ctx := context.Background()

		sess, err := connectFromFlags(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		store := newMetadataStore(sess)
		cs, err := store.GetClusterSetByName(ctx, setName)
		if err != nil {
			return fmt.Errorf("cluster-set rejoin-cluster: %w", err)
		}
		replica, err := store.GetClusterByName(ctx, replicaName)
		if err != nil {
			return fmt.Errorf("cluster-set rejoin-cluster: %w", err)
		}

		cfg := connectionConfigFromFlags()
		host, port, perr := splitEndpoint(replicaEndpoint)
		if perr != nil {
			return perr
		}
		cfg.Host, cfg.Port = host, port
		replicaPrimary, err := mysqlsess.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("cluster-set rejoin-cluster: connecting to %s: %w", replicaEndpoint, err)
		}
		defer replicaPrimary.Close()

		if isDryRun() {
			fmt.Printf("would rejoin %q to cluster set %q\n", replicaName, setName)
			return nil
		}

		coord := clusterset.New(store)
		csUser, _ := cmd.Flags().GetString("channel-user")
		csPass, _ := cmd.Flags().GetString("channel-password")
		if err := coord.RejoinCluster(ctx, cs, replica, replicaPrimary, primaryEndpoint,
			clusterset.ChannelCredentials{User: csUser, Password: csPass}); err != nil {
			return fmt.Errorf("cluster-set rejoin-cluster: %w", err)
		}
		fmt.Printf("cluster %q rejoined to cluster set %q\n", replicaName, setName)
		return nil
	},
}

var clusterSetSetPrimaryCmd = &cobra.Command{
	Use:          "set-primary-cluster [cluster-set-name] [new-primary-cluster-name]",
	Short:        "Perform a planned switchover of the cluster set's primary role",
	SilenceUsage: true,
	Args:         cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setName, newPrimaryName := args[0], args[1]
		ctx := context.Background()

		sess, err := connectFromFlags(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		store := newMetadataStore(sess)
		cs, err := store.GetClusterSetByName(ctx, setName)
		if err != nil {
			return fmt.Errorf("cluster-set set-primary-cluster: %w", err)
		}
		newPrimary, err := store.GetClusterByName(ctx, newPrimaryName)
		if err != nil {
			return fmt.Errorf("cluster-set set-primary-cluster: %w", err)
		}

		if isDryRun() {
			fmt.Printf("would set %q as the primary cluster of cluster set %q\n", newPrimaryName, setName)
			return nil
		}

		coord := clusterset.New(store)
		if err := coord.SetPrimaryCluster(ctx, cs, newPrimary); err != nil {
			return fmt.Errorf("cluster-set set-primary-cluster: %w", err)
		}
		if err := store.UpdateClusterSetPrimary(ctx, cs.ID, newPrimary.ID); err != nil {
			return fmt.Errorf("cluster-set set-primary-cluster: %w", err)
		}
		fmt.Printf("cluster %q is now the primary of cluster set %q\n", newPrimaryName, setName)
		return nil
	},
}

var clusterSetForcePrimaryCmd = &cobra.Command{
	Use:          "force-primary-cluster [cluster-set-name] [new-primary-cluster-name]",
	Short:        "Force an unsafe failover to a new primary cluster, acknowledging possible data loss",
	SilenceUsage: true,
	Args:         cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setName, newPrimaryName := args[0], args[1]
		ctx := context.Background()

		acknowledge, _ := cmd.Flags().GetBool("acknowledge-data-loss")

		sess, err := connectFromFlags(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		store := newMetadataStore(sess)
		cs, err := store.GetClusterSetByName(ctx, setName)
		if err != nil {
			return fmt.Errorf("cluster-set force-primary-cluster: %w", err)
		}
		newPrimary, err := store.GetClusterByName(ctx, newPrimaryName)
		if err != nil {
			return fmt.Errorf("cluster-set force-primary-cluster: %w", err)
		}

		if isDryRun() {
			fmt.Printf("would force %q as the primary cluster of cluster set %q\n", newPrimaryName, setName)
			return nil
		}

		coord := clusterset.New(store)
		if err := coord.ForcePrimaryCluster(ctx, cs, newPrimary, acknowledge); err != nil {
			return fmt.Errorf("cluster-set force-primary-cluster: %w", err)
		}
		if err := store.UpdateClusterSetPrimary(ctx, cs.ID, newPrimary.ID); err != nil {
			return fmt.Errorf("cluster-set force-primary-cluster: %w", err)
		}
		fmt.Printf("cluster %q is now the forced primary of cluster set %q\n", newPrimaryName, setName)
		return nil
	},
}

func connectFence(ctx context.Context, endpoints []string) (map[string]*mysqlsess.Session, error) {
	baseCfg := connectionConfigFromFlags()
	members := map[string]*mysqlsess.Session{}
	for _, ep := range endpoints {
		cfg := baseCfg
		host, port, err := splitEndpoint(ep)
		if err != nil {
			return nil, err
		}
		cfg.Host, cfg.Port = host, port
		sess, err := mysqlsess.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", ep, err)
		}
		members[ep] = sess
	}
	return members, nil
}

func closeAll(members map[string]*mysqlsess.Session) {
	for _, sess := range members {
		sess.Close()
	}
}

var clusterSetFenceAllTrafficCmd = &cobra.Command{
	Use:          "fence-all-traffic [endpoints...]",
	Short:        "Block both reads and writes on every listed member",
	SilenceUsage: true,
	Args:         cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		members, err := connectFence(ctx, args)
		if err != nil {
			return fmt.Errorf("cluster-set fence-all-traffic: %w", err)
		}
		defer closeAll(members)

		if isDryRun() {
			fmt.Printf("would fence all traffic on %d member(s)\n", len(members))
			return nil
		}
		if err := clusterset.FenceAllTraffic(ctx, members); err != nil {
			return fmt.Errorf("cluster-set fence-all-traffic: %w", err)
		}
		fmt.Printf("fenced all traffic on %d member(s)\n", len(members))
		return nil
	},
}

var clusterSetFenceWritesCmd = &cobra.Command{
	Use:          "fence-writes [endpoints...]",
	Short:        "Block writes (but not reads) on every listed member",
	SilenceUsage: true,
	Args:         cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		members, err := connectFence(ctx, args)
		if err != nil {
			return fmt.Errorf("cluster-set fence-writes: %w", err)
		}
		defer closeAll(members)

		if isDryRun() {
			fmt.Printf("would fence writes on %d member(s)\n", len(members))
			return nil
		}
		if err := clusterset.FenceWrites(ctx, members); err != nil {
			return fmt.Errorf("cluster-set fence-writes: %w", err)
		}
		fmt.Printf("fenced writes on %d member(s)\n", len(members))
		return nil
	},
}

var clusterSetUnfenceWritesCmd = &cobra.Command{
	Use:          "unfence-writes [endpoints...]",
	Short:        "Re-enable writes on every listed member",
	SilenceUsage: true,
	Args:         cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		members, err := connectFence(ctx, args)
		if err != nil {
			return fmt.Errorf("cluster-set unfence-writes: %w", err)
		}
		defer closeAll(members)

		if isDryRun() {
			fmt.Printf("would unfence writes on %d member(s)\n", len(members))
			return nil
		}
		if err := clusterset.UnfenceWrites(ctx, members); err != nil {
			return fmt.Errorf("cluster-set unfence-writes: %w", err)
		}
		fmt.Printf("unfenced writes on %d member(s)\n", len(members))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clusterSetCmd)
	clusterSetCmd.AddCommand(clusterSetCreateCmd)
	clusterSetCmd.AddCommand(clusterSetAddReplicaCmd)
	clusterSetCmd.AddCommand(clusterSetStatusCmd)
	clusterSetCmd.AddCommand(clusterSetRemoveClusterCmd)
	clusterSetCmd.AddCommand(clusterSetRejoinClusterCmd)
	clusterSetCmd.AddCommand(clusterSetSetPrimaryCmd)
	clusterSetCmd.AddCommand(clusterSetForcePrimaryCmd)
	clusterSetCmd.AddCommand(clusterSetFenceAllTrafficCmd)
	clusterSetCmd.AddCommand(clusterSetFenceWritesCmd)
	clusterSetCmd.AddCommand(clusterSetUnfenceWritesCmd)

	clusterSetCreateCmd.Flags().String("domain-name", "", "DNS domain name for this cluster set's router endpoints")
	clusterSetAddReplicaCmd.Flags().String("channel-user", "", "Replication user for the managed channel")
	clusterSetAddReplicaCmd.Flags().String("channel-password", "", "Replication password for the managed channel")
	clusterSetRejoinClusterCmd.Flags().String("channel-user", "", "Replication user for the managed channel")
	clusterSetRejoinClusterCmd.Flags().String("channel-password", "", "Replication password for the managed channel")
	clusterSetForcePrimaryCmd.Flags().Bool("acknowledge-data-loss", false, "Acknowledge that transactions not yet replicated to the new primary will be lost")
}
