package wiki

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/internal/llm"
	"github.com/meikuraledutech/workflow/internal/platform"
)

// builtinApp is listed by the requirement parser but needs no credentials.
const builtinApp = "AI Agent (n8n)"

// WorkflowTitle picks the page title for a workflow.
func WorkflowTitle(req *llm.Requirements, doc *workflow.Document) string {
	if req != nil && req.WorkflowName != "" {
		return req.WorkflowName
	}
	if doc != nil && doc.Name != "" {
		return doc.Name
	}
	return "Untitled Workflow"
}

// WorkflowPage renders the documentation page of a generated workflow.
// req and dep may be nil.
func WorkflowPage(req *llm.Requirements, doc *workflow.Document, dep *platform.DeploymentInfo) ([]Block, error) {
	if req == nil {
		req = &llm.Requirements{}
	}
	var out []Block

	if dep != nil {
		out = append(out, Callout("⚡", "", Text("Deployed to "+dep.Environment+" - "), Link("Open Editor", dep.EditorURL)))
	}

	goal := req.Goal
	if goal == "" {
		goal = "No description provided"
	}
	out = append(out,
		Heading(2, "📋 Overview"),
		Paragraph(Text(goal)),
		Heading(2, "🔧 What Was Built"),
		Paragraph(Text("Complete workflow with "), Bold(fmt.Sprintf("%d nodes", len(doc.Nodes))), Text(" covering the complete automation flow.")),
		Heading(3, "Data Flow"),
	)

	nodes := append([]workflow.DocumentNode(nil), doc.Nodes...)
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Position[0] < nodes[j].Position[0] })
	for _, n := range nodes {
		out = append(out, Numbered(Bold(n.Name), Text(" - "+shortType(n.Type))))
	}

	if len(req.KeyFeatures) > 0 {
		out = append(out, Heading(3, "Key Features"))
		for _, f := range req.KeyFeatures {
			out = append(out, Bullet(Text("✅ "+f)))
		}
	}

	out = append(out,
		Heading(2, "🛠️ Setup Instructions"),
		Callout("🔐", "", Bold("Configure these credentials in the platform before the workflow can run")),
	)
	for _, app := range req.Apps {
		if app != builtinApp {
			out = append(out, Bullet(Bold(app)))
		}
	}

	if dep != nil && len(dep.Webhooks) > 0 {
		out = append(out, Heading(3, "Webhooks"))
		for _, w := range dep.Webhooks {
			out = append(out, Bullet(Bold(w.Node), Text(" "+w.URL)))
		}
	}

	if eh := req.ErrorHandling; eh.Strategy != "" || eh.NotificationMethod != "" {
		out = append(out, Heading(2, "⚠️ Error Handling"))
		if eh.Strategy != "" {
			out = append(out, Bullet(Text("Strategy: "+eh.Strategy)))
		}
		if eh.NotificationMethod != "" {
			out = append(out, Bullet(Text("Notification: "+eh.NotificationMethod)))
		}
	}

	if len(req.Triggers) > 0 {
		desc := req.Triggers[0].Description
		if desc == "" {
			desc = "Not specified"
		}
		out = append(out, Heading(2, "🪝 Trigger Configuration"), Paragraph(Text(desc)))
	}

	data, err := doc.JSON()
	if err != nil {
		return nil, err
	}
	out = append(out,
		Heading(2, "💾 Complete Workflow JSON"),
		Callout("💡", "", Text("Expand the toggles below and copy the JSON in order to import it.")),
	)
	out = append(out, jsonToggles(string(data))...)
	out = append(out, Divider())
	return out, nil
}

// jsonToggles spreads the code chunks of data over toggles holding at most
// maxChildren blocks each.
func jsonToggles(data string) []Block {
	chunks := CodeChunks("json", data)
	parts := (len(chunks) + maxChildren - 1) / maxChildren
	var out []Block
	for i := 0; i < parts; i++ {
		part := chunks[i*maxChildren : min((i+1)*maxChildren, len(chunks))]
		title := fmt.Sprintf("📄 Workflow JSON (%d blocks)", len(part))
		if parts > 1 {
			title = fmt.Sprintf("📄 Workflow JSON part %d/%d (%d blocks)", i+1, parts, len(part))
		}
		out = append(out, Toggle([]RichText{Bold(title)}, part))
	}
	return out
}

func shortType(t string) string {
	t = strings.TrimPrefix(t, "n8n-nodes-base.")
	return strings.TrimPrefix(t, "@n8n/n8n-nodes-langchain.")
}

var changeEmoji = map[string]string{
	"requirement": "📝",
	"approach":    "🔄",
	"blocker":     "🚫",
	"completion":  "✅",
	"update":      "📌",
}

func impactColor(impact string) string {
	switch impact {
	case "low":
		return "gray_background"
	case "medium":
		return "yellow_background"
	case "critical":
		return "red_background"
	default:
		return "orange_background"
	}
}

// ChangeCallout records a project change.
func ChangeCallout(at time.Time, description, department, changeType, impact string) Block {
	emoji, ok := changeEmoji[changeType]
	if !ok {
		emoji = changeEmoji["update"]
	}
	return Callout(emoji, impactColor(impact),
		Text("["+at.Format("2006-01-02 15:04")+"] "),
		Bold(description),
		Text(" - "+department),
	)
}

// ErrorCallout records a workflow failure.
func ErrorCallout(at time.Time, source, message, severity string) Block {
	color := "orange_background"
	if severity == "critical" || severity == "high" {
		color = "red_background"
	}
	return Callout("🚨", color,
		Text("["+at.Format("2006-01-02 15:04")+"] "),
		Bold(source+": "),
		Text(message),
		Text(" ("+severity+")"),
	)
}

// ProjectPage renders the body of a tracked project.
func ProjectPage(name, department, description string, at time.Time) []Block {
	out := []Block{
		Callout("🗂️", "", Bold(name), Text(" - "+department)),
		Heading(2, "Description"),
	}
	if description == "" {
		description = "No description provided"
	}
	out = append(out,
		Paragraph(Text(description)),
		Heading(2, "Change Log"),
		Paragraph(Text("Tracked since "+at.Format("2006-01-02"))),
	)
	return out
}

// TaskStatusUpdate is appended to a task page when its status moves.
func TaskStatusUpdate(at time.Time, status, note string) Block {
	rt := []RichText{Text("[" + at.Format("2006-01-02 15:04") + "] Status: "), Bold(status)}
	if note != "" {
		rt = append(rt, Text(" - "+note))
	}
	return Callout("🔁", "blue_background", rt...)
}
