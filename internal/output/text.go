package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/myshdb/clusteradm/internal/clusterset"
	"github.com/myshdb/clusteradm/internal/engine"
	"github.com/myshdb/clusteradm/internal/grprobe"
	"github.com/myshdb/clusteradm/internal/metadata"
)

// TextRenderer produces Lip Gloss styled terminal output.
type TextRenderer struct {
	w io.Writer
}

func (r *TextRenderer) RenderStatus(clusterName string, snap *grprobe.Snapshot) {
	width := 64
	fmt.Fprintln(r.w)

	header := TitleStyle.Render(fmt.Sprintf("clusteradm — %s", clusterName))
	var lines []string
	lines = append(lines, r.labelValue("Group name:", snap.GroupName))
	lines = append(lines, r.labelValue("Mode:", modeLabel(snap.SinglePrimary)))
	lines = append(lines, r.labelValue("Availability:", r.colorAvailability(snap.Availability)))
	if snap.Primary != nil {
		lines = append(lines, r.labelValue("Primary:", fmt.Sprintf("%s:%d", snap.Primary.Host, snap.Primary.Port)))
	} else {
		lines = append(lines, r.labelValue("Primary:", "NONE"))
	}
	lines = append(lines, r.labelValue("Quorum:", fmt.Sprintf("%v", snap.HasQuorum)))

	box := BoxStyle.Width(width).Render(header + "\n" + strings.Join(lines, "\n"))
	fmt.Fprintln(r.w, box)

	memberTitle := TitleStyle.Render("Members")
	var memberLines []string
	for _, m := range snap.Members {
		memberLines = append(memberLines, fmt.Sprintf("%s  %-22s %-12s %-10s %s",
			r.colorMemberState(m.State), fmt.Sprintf("%s:%d", m.Host, m.Port), string(m.Role), string(m.State), m.Version))
	}
	memberBox := BoxStyle.Width(width).Render(memberTitle + "\n" + strings.Join(memberLines, "\n"))
	fmt.Fprintln(r.w, memberBox)
	fmt.Fprintln(r.w)
}

func (r *TextRenderer) RenderOperationResult(result *engine.Result) {
	width := 64
	fmt.Fprintln(r.w)

	var style = SafeBoxStyle
	var icon = IconSafe
	if result.FinalState != engine.StateDone {
		style = DangerBoxStyle
		icon = IconDanger
	}

	title := TitleStyle.Render(fmt.Sprintf("%s %s", icon, result.Op))
	var lines []string
	lines = append(lines, r.labelValue("Cluster:", result.Cluster))
	if result.Member != "" {
		lines = append(lines, r.labelValue("Member:", result.Member))
	}
	if result.Method != "" {
		lines = append(lines, r.labelValue("Recovery method:", string(result.Method)))
	}
	lines = append(lines, r.labelValue("Final state:", string(result.FinalState)))

	box := style.Width(width).Render(title + "\n" + strings.Join(lines, "\n"))
	fmt.Fprintln(r.w, box)

	if len(result.Notes) > 0 {
		var noteLines []string
		for _, n := range result.Notes {
			noteLines = append(noteLines, "* "+n)
		}
		noteBox := BoxStyle.Width(width).Render(TitleStyle.Render("Notes") + "\n" + strings.Join(noteLines, "\n"))
		fmt.Fprintln(r.w, noteBox)
	}
	fmt.Fprintln(r.w)
}

func (r *TextRenderer) RenderClusterSetStatus(setName string, status *clusterset.GlobalStatus) {
	width := 64
	fmt.Fprintln(r.w)

	title := TitleStyle.Render(fmt.Sprintf("clusteradm — cluster set %s", setName))
	fmt.Fprintln(r.w, title)

	for name, cs := range status.Clusters {
		var lines []string
		lines = append(lines, r.labelValue("State:", r.colorGlobalState(cs.State)))
		lines = append(lines, r.labelValue("Availability:", r.colorAvailability(cs.Availability)))
		if cs.ChannelError != "" {
			lines = append(lines, r.labelValue("Channel error:", cs.ChannelError))
		}
		box := BoxStyle.Width(width).Render(TitleStyle.Render(name) + "\n" + strings.Join(lines, "\n"))
		fmt.Fprintln(r.w, box)
	}
	fmt.Fprintln(r.w)
}

// helpers

func (r *TextRenderer) labelValue(label, value string) string {
	return LabelStyle.Render(label) + " " + ValueStyle.Render(value)
}

func (r *TextRenderer) colorAvailability(a grprobe.Availability) string {
	switch a {
	case grprobe.AvailabilityOnline:
		return SafeText.Render(string(a))
	case grprobe.AvailabilityOnlineNoPrimary, grprobe.AvailabilitySomeUnreachable:
		return WarningText.Render(string(a))
	default:
		return DangerText.Render(string(a))
	}
}

func (r *TextRenderer) colorGlobalState(s clusterset.GlobalState) string {
	switch s {
	case clusterset.GlobalOK:
		return SafeText.Render(string(s))
	case clusterset.GlobalOKNotConsistent:
		return WarningText.Render(string(s))
	default:
		return DangerText.Render(string(s))
	}
}

func (r *TextRenderer) colorMemberState(s metadata.MemberState) string {
	switch s {
	case metadata.MemberOnline:
		return SafeText.Render(IconSafe)
	case metadata.MemberRecovering:
		return WarningText.Render(IconWarning)
	default:
		return DangerText.Render(IconDanger)
	}
}

func modeLabel(singlePrimary bool) string {
	if singlePrimary {
		return "Single-Primary"
	}
	return "Multi-Primary"
}
