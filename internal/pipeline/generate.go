package pipeline

import (
	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/internal/llm"
)

const (
	DefaultWorkflowName = "AI Business Automation"
	DefaultChatModel    = "gpt-4o"
	ChatWebhookPath     = "chat/start"

	agentPrompt = "You are a specialized business automation agent. Use your tools to assist the user."
)

// Generate builds the business workflow for req: a chat webhook feeding an
// AI agent that has a model, window memory and guardrails attached.
func Generate(req *llm.Requirements, opts ...workflow.Option) (workflow.Document, error) {
	name := DefaultWorkflowName
	if req != nil && req.WorkflowName != "" {
		name = req.WorkflowName
	}
	b := workflow.NewBuilder(name, opts...)

	hook, err := b.Webhook(ChatWebhookPath, "POST")
	if err != nil {
		return workflow.Document{}, err
	}
	_, err = b.GuardedAgent(hook, DefaultChatModel, map[string]any{
		"text":    "={{$json.query}}",
		"options": map[string]any{"systemMessage": agentPrompt},
	})
	if err != nil {
		return workflow.Document{}, err
	}
	return b.Graph().Document(), nil
}
