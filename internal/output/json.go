package output

import (
	"encoding/json"
	"io"

	"github.com/myshdb/clusteradm/internal/clusterset"
	"github.com/myshdb/clusteradm/internal/engine"
	"github.com/myshdb/clusteradm/internal/grprobe"
)

// JSONRenderer produces machine-readable JSON output.
type JSONRenderer struct {
	w io.Writer
}

type jsonMember struct {
	UUID    string `json:"uuid"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	State   string `json:"state"`
	Role    string `json:"role"`
	Version string `json:"version"`
}

type jsonStatus struct {
	Cluster       string       `json:"cluster"`
	GroupName     string       `json:"group_name"`
	SinglePrimary bool         `json:"single_primary"`
	Availability  string       `json:"availability"`
	HasQuorum     bool         `json:"has_quorum"`
	Primary       string       `json:"primary,omitempty"`
	Members       []jsonMember `json:"members"`
}

func (r *JSONRenderer) RenderStatus(clusterName string, snap *grprobe.Snapshot) {
	out := jsonStatus{
		Cluster:       clusterName,
		GroupName:     snap.GroupName,
		SinglePrimary: snap.SinglePrimary,
		Availability:  string(snap.Availability),
		HasQuorum:     snap.HasQuorum,
	}
	if snap.Primary != nil {
		out.Primary = snap.Primary.UUID
	}
	for _, m := range snap.Members {
		out.Members = append(out.Members, jsonMember{
			UUID: m.UUID, Host: m.Host, Port: m.Port,
			State: string(m.State), Role: string(m.Role), Version: m.Version,
		})
	}
	r.encode(out)
}

type jsonResult struct {
	Op         string   `json:"operation"`
	Cluster    string   `json:"cluster"`
	Member     string   `json:"member,omitempty"`
	Method     string   `json:"recovery_method,omitempty"`
	FinalState string   `json:"final_state"`
	Notes      []string `json:"notes,omitempty"`
}

func (r *JSONRenderer) RenderOperationResult(result *engine.Result) {
	r.encode(jsonResult{
		Op: result.Op, Cluster: result.Cluster, Member: result.Member,
		Method: string(result.Method), FinalState: string(result.FinalState), Notes: result.Notes,
	})
}

type jsonClusterSetMember struct {
	State        string `json:"state"`
	Availability string `json:"availability"`
	ChannelError string `json:"channel_error,omitempty"`
}

type jsonClusterSetStatus struct {
	ClusterSet string                          `json:"cluster_set"`
	Clusters   map[string]jsonClusterSetMember `json:"clusters"`
}

func (r *JSONRenderer) RenderClusterSetStatus(setName string, status *clusterset.GlobalStatus) {
	out := jsonClusterSetStatus{ClusterSet: setName, Clusters: map[string]jsonClusterSetMember{}}
	for name, cs := range status.Clusters {
		out.Clusters[name] = jsonClusterSetMember{
			State: string(cs.State), Availability: string(cs.Availability), ChannelError: cs.ChannelError,
		}
	}
	r.encode(out)
}

func (r *JSONRenderer) encode(v any) {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
