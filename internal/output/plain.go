package output

import (
	"fmt"
	"io"

	"github.com/myshdb/clusteradm/internal/clusterset"
	"github.com/myshdb/clusteradm/internal/engine"
	"github.com/myshdb/clusteradm/internal/grprobe"
)

// PlainRenderer produces unstyled, script-friendly text — no colors, no
// box-drawing, stable column layout.
type PlainRenderer struct {
	w io.Writer
}

func (r *PlainRenderer) RenderStatus(clusterName string, snap *grprobe.Snapshot) {
	fmt.Fprintf(r.w, "cluster: %s\n", clusterName)
	fmt.Fprintf(r.w, "group_name: %s\n", snap.GroupName)
	fmt.Fprintf(r.w, "mode: %s\n", modeLabel(snap.SinglePrimary))
	fmt.Fprintf(r.w, "availability: %s\n", snap.Availability)
	fmt.Fprintf(r.w, "has_quorum: %v\n", snap.HasQuorum)
	if snap.Primary != nil {
		fmt.Fprintf(r.w, "primary: %s:%d\n", snap.Primary.Host, snap.Primary.Port)
	}
	for _, m := range snap.Members {
		fmt.Fprintf(r.w, "member: %s:%d role=%s state=%s version=%s\n", m.Host, m.Port, m.Role, m.State, m.Version)
	}
}

func (r *PlainRenderer) RenderOperationResult(result *engine.Result) {
	fmt.Fprintf(r.w, "operation: %s\n", result.Op)
	fmt.Fprintf(r.w, "cluster: %s\n", result.Cluster)
	if result.Member != "" {
		fmt.Fprintf(r.w, "member: %s\n", result.Member)
	}
	if result.Method != "" {
		fmt.Fprintf(r.w, "recovery_method: %s\n", result.Method)
	}
	fmt.Fprintf(r.w, "final_state: %s\n", result.FinalState)
	for _, n := range result.Notes {
		fmt.Fprintf(r.w, "note: %s\n", n)
	}
}

func (r *PlainRenderer) RenderClusterSetStatus(setName string, status *clusterset.GlobalStatus) {
	fmt.Fprintf(r.w, "cluster_set: %s\n", setName)
	for name, cs := range status.Clusters {
		fmt.Fprintf(r.w, "cluster: %s state=%s availability=%s", name, cs.State, cs.Availability)
		if cs.ChannelError != "" {
			fmt.Fprintf(r.w, " channel_error=%q", cs.ChannelError)
		}
		fmt.Fprintln(r.w)
	}
}
