package output

import (
	"io"

	"github.com/myshdb/clusteradm/internal/clusterset"
	"github.com/myshdb/clusteradm/internal/engine"
	"github.com/myshdb/clusteradm/internal/grprobe"
)

// Renderer is implemented by every output format this tool supports:
// human-readable styled text, plain unstyled text, Markdown (for piping
// into issue trackers/chat), and JSON (for scripting).
type Renderer interface {
	RenderStatus(clusterName string, snap *grprobe.Snapshot)
	RenderOperationResult(result *engine.Result)
	RenderClusterSetStatus(setName string, status *clusterset.GlobalStatus)
}

// NewRenderer creates a renderer for the given format.
func NewRenderer(format string, w io.Writer) Renderer {
	switch format {
	case "json":
		return &JSONRenderer{w: w}
	case "markdown":
		return &MarkdownRenderer{w: w}
	case "plain":
		return &PlainRenderer{w: w}
	default:
		return &TextRenderer{w: w}
	}
}
