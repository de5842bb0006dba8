package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/myshdb/clusteradm/internal/clusterset"
	"github.com/myshdb/clusteradm/internal/engine"
	"github.com/myshdb/clusteradm/internal/grprobe"
	"github.com/myshdb/clusteradm/internal/metadata"
)

func sampleSnapshot() *grprobe.Snapshot {
	primary := grprobe.MemberView{UUID: "uuid-1", Host: "db1", Port: 3306, State: metadata.MemberOnline, Role: metadata.RolePrimary, Version: "8.0.35"}
	return &grprobe.Snapshot{
		GroupName:     "aaaa-bbbb",
		SinglePrimary: true,
		Availability:  grprobe.AvailabilityOnline,
		HasQuorum:     true,
		Primary:       &primary,
		Members: []grprobe.MemberView{
			primary,
			{UUID: "uuid-2", Host: "db2", Port: 3306, State: metadata.MemberOnline, Role: metadata.RoleSecondary, Version: "8.0.35"},
		},
	}
}

func sampleResult() *engine.Result {
	return &engine.Result{
		Op: "AddInstance", Cluster: "prod", Member: "db3:3306",
		Method: metadata.RecoveryClone, FinalState: engine.StateDone,
		Notes: []string{"distributed recovery applied via clone plugin"},
	}
}

func sampleClusterSetStatus() *clusterset.GlobalStatus {
	return &clusterset.GlobalStatus{
		Clusters: map[string]clusterset.ClusterGlobalStatus{
			"replica1": {State: clusterset.GlobalOK, Availability: grprobe.AvailabilityOnline},
		},
	}
}

func TestTextRenderer_RenderStatus(t *testing.T) {
	var buf bytes.Buffer
	r := &TextRenderer{w: &buf}
	r.RenderStatus("prod", sampleSnapshot())
	out := buf.String()
	if !strings.Contains(out, "aaaa-bbbb") {
		t.Errorf("output missing group name: %s", out)
	}
	if !strings.Contains(out, "db1:3306") {
		t.Errorf("output missing primary endpoint: %s", out)
	}
}

func TestTextRenderer_RenderOperationResult(t *testing.T) {
	var buf bytes.Buffer
	r := &TextRenderer{w: &buf}
	r.RenderOperationResult(sampleResult())
	out := buf.String()
	if !strings.Contains(out, "AddInstance") || !strings.Contains(out, "db3:3306") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestJSONRenderer_RenderStatus(t *testing.T) {
	var buf bytes.Buffer
	r := &JSONRenderer{w: &buf}
	r.RenderStatus("prod", sampleSnapshot())

	var decoded jsonStatus
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Cluster != "prod" || len(decoded.Members) != 2 {
		t.Errorf("unexpected decoded status: %+v", decoded)
	}
}

func TestJSONRenderer_RenderOperationResult(t *testing.T) {
	var buf bytes.Buffer
	r := &JSONRenderer{w: &buf}
	r.RenderOperationResult(sampleResult())

	var decoded jsonResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Op != "AddInstance" || decoded.FinalState != "DONE" {
		t.Errorf("unexpected decoded result: %+v", decoded)
	}
}

func TestMarkdownRenderer_RenderClusterSetStatus(t *testing.T) {
	var buf bytes.Buffer
	r := &MarkdownRenderer{w: &buf}
	r.RenderClusterSetStatus("global", sampleClusterSetStatus())
	out := buf.String()
	if !strings.Contains(out, "| replica1 |") {
		t.Errorf("missing table row: %s", out)
	}
}

func TestPlainRenderer_RenderStatus(t *testing.T) {
	var buf bytes.Buffer
	r := &PlainRenderer{w: &buf}
	r.RenderStatus("prod", sampleSnapshot())
	out := buf.String()
	if !strings.Contains(out, "has_quorum: true") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestNewRenderer_SelectsByFormat(t *testing.T) {
	cases := map[string]string{
		"json":     "*output.JSONRenderer",
		"markdown": "*output.MarkdownRenderer",
		"plain":    "*output.PlainRenderer",
		"text":     "*output.TextRenderer",
		"":         "*output.TextRenderer",
	}
	for format, want := range cases {
		if got := fmt.Sprintf("%T", NewRenderer(format, &bytes.Buffer{})); got != want {
			t.Errorf("NewRenderer(%q) = %s, want %s", format, got, want)
		}
	}
}
