package output

import (
	"fmt"
	"io"

	"github.com/myshdb/clusteradm/internal/clusterset"
	"github.com/myshdb/clusteradm/internal/engine"
	"github.com/myshdb/clusteradm/internal/grprobe"
)

// MarkdownRenderer produces GitHub-flavored Markdown, suitable for
// pasting into an issue or chat thread.
type MarkdownRenderer struct {
	w io.Writer
}

func (r *MarkdownRenderer) RenderStatus(clusterName string, snap *grprobe.Snapshot) {
	fmt.Fprintf(r.w, "## Cluster `%s`\n\n", clusterName)
	fmt.Fprintf(r.w, "- **Group name:** %s\n", snap.GroupName)
	fmt.Fprintf(r.w, "- **Mode:** %s\n", modeLabel(snap.SinglePrimary))
	fmt.Fprintf(r.w, "- **Availability:** %s\n", snap.Availability)
	fmt.Fprintf(r.w, "- **Quorum:** %v\n\n", snap.HasQuorum)

	fmt.Fprintln(r.w, "| Member | Role | State | Version |")
	fmt.Fprintln(r.w, "|---|---|---|---|")
	for _, m := range snap.Members {
		fmt.Fprintf(r.w, "| %s:%d | %s | %s | %s |\n", m.Host, m.Port, m.Role, m.State, m.Version)
	}
	fmt.Fprintln(r.w)
}

func (r *MarkdownRenderer) RenderOperationResult(result *engine.Result) {
	fmt.Fprintf(r.w, "## %s\n\n", result.Op)
	fmt.Fprintf(r.w, "- **Cluster:** %s\n", result.Cluster)
	if result.Member != "" {
		fmt.Fprintf(r.w, "- **Member:** %s\n", result.Member)
	}
	if result.Method != "" {
		fmt.Fprintf(r.w, "- **Recovery method:** %s\n", result.Method)
	}
	fmt.Fprintf(r.w, "- **Final state:** %s\n\n", result.FinalState)
	for _, n := range result.Notes {
		fmt.Fprintf(r.w, "- %s\n", n)
	}
	fmt.Fprintln(r.w)
}

func (r *MarkdownRenderer) RenderClusterSetStatus(setName string, status *clusterset.GlobalStatus) {
	fmt.Fprintf(r.w, "## Cluster set `%s`\n\n", setName)
	fmt.Fprintln(r.w, "| Cluster | State | Availability | Channel error |")
	fmt.Fprintln(r.w, "|---|---|---|---|")
	for name, cs := range status.Clusters {
		fmt.Fprintf(r.w, "| %s | %s | %s | %s |\n", name, cs.State, cs.Availability, cs.ChannelError)
	}
	fmt.Fprintln(r.w)
}
