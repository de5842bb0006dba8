package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/myshdb/clusteradm/internal/routing"
)

var routingGuidelineCmd = &cobra.Command{
	Use:   "routing-guideline",
	Short: "Create, inspect, import, and remove routing guidelines",
}

var routingGuidelineCreateCmd = &cobra.Command{
	Use:          "create [cluster-set-id] [name] [document-file]",
	Short:        "Create a new routing guideline document",
	SilenceUsage: true,
	Args:         cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterSetID, name, docPath := args[0], args[1], args[2]
		ctx := context.Background()

		sess, err := connectFromFlags(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		doc, err := os.ReadFile(docPath)
		if err != nil {
			return fmt.Errorf("routing-guideline create: reading %s: %w", docPath, err)
		}

		id, perr := parseClusterSetID(clusterSetID)
		if perr != nil {
			return perr
		}

		if isDryRun() {
			fmt.Printf("would create routing guideline %q for cluster set %s\n", name, clusterSetID)
			return nil
		}

		mgr := routing.New(newMetadataStore(sess))
		active, _ := cmd.Flags().GetBool("active")
		g, err := mgr.CreateRoutingGuideline(ctx, id, name, string(doc), active)
		if err != nil {
			return fmt.Errorf("routing-guideline create: %w", err)
		}
		fmt.Printf("routing guideline %q created (id=%d)\n", g.Name, g.ID)
		return nil
	},
}

var routingGuidelineGetCmd = &cobra.Command{
	Use:          "get [cluster-set-id] [name]",
	Short:        "Print a routing guideline document (active guideline if name is omitted)",
	SilenceUsage: true,
	Args:         cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		sess, err := connectFromFlags(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		id, perr := parseClusterSetID(args[0])
		if perr != nil {
			return perr
		}
		name := ""
		if len(args) == 2 {
			name = args[1]
		}

		mgr := routing.New(newMetadataStore(sess))
		g, err := mgr.GetRoutingGuideline(ctx, id, name)
		if err != nil {
			return fmt.Errorf("routing-guideline get: %w", err)
		}
		fmt.Println(g.Document)
		return nil
	},
}

var routingGuidelineRemoveCmd = &cobra.Command{
	Use:          "remove [cluster-set-id] [name]",
	Short:        "Remove a routing guideline",
	SilenceUsage: true,
	Args:         cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		sess, err := connectFromFlags(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		id, perr := parseClusterSetID(args[0])
		if perr != nil {
			return perr
		}

		if isDryRun() {
			fmt.Printf("would remove routing guideline %q\n", args[1])
			return nil
		}

		mgr := routing.New(newMetadataStore(sess))
		if err := mgr.RemoveRoutingGuideline(ctx, id, args[1]); err != nil {
			return fmt.Errorf("routing-guideline remove: %w", err)
		}
		fmt.Printf("routing guideline %q removed\n", args[1])
		return nil
	},
}

var routingGuidelineImportCmd = &cobra.Command{
	Use:          "import [cluster-set-id] [name] [document-file]",
	Short:        "Import an externally authored routing guideline document and activate it",
	SilenceUsage: true,
	Args:         cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterSetID, name, docPath := args[0], args[1], args[2]
		ctx := context.Background()

		sess, err := connectFromFlags(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		doc, err := os.ReadFile(docPath)
		if err != nil {
			return fmt.Errorf("routing-guideline import: reading %s: %w", docPath, err)
		}
		id, perr := parseClusterSetID(clusterSetID)
		if perr != nil {
			return perr
		}

		if isDryRun() {
			fmt.Printf("would import routing guideline %q for cluster set %s\n", name, clusterSetID)
			return nil
		}

		mgr := routing.New(newMetadataStore(sess))
		g, err := mgr.ImportRoutingGuideline(ctx, id, name, string(doc))
		if err != nil {
			return fmt.Errorf("routing-guideline import: %w", err)
		}
		fmt.Printf("routing guideline %q imported and activated (id=%d)\n", g.Name, g.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(routingGuidelineCmd)
	routingGuidelineCmd.AddCommand(routingGuidelineCreateCmd)
	routingGuidelineCmd.AddCommand(routingGuidelineGetCmd)
	routingGuidelineCmd.AddCommand(routingGuidelineRemoveCmd)
	routingGuidelineCmd.AddCommand(routingGuidelineImportCmd)

	routingGuidelineCreateCmd.Flags().Bool("active", false, "Activate the guideline immediately")
}

func parseClusterSetID(s string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(s, "%d", &id)
	if err != nil {
		return 0, fmt.Errorf("invalid cluster-set id %q: %w", s, err)
	}
	return id, nil
}
