package workflow

import "maps"

// Node types used by the factories below.
const (
	TypeManualTrigger   = "n8n-nodes-base.manualTrigger"
	TypeWebhook         = "n8n-nodes-base.webhook"
	TypeErrorTrigger    = "n8n-nodes-base.errorTrigger"
	TypeHTTPRequest     = "n8n-nodes-base.httpRequest"
	TypeSlack           = "n8n-nodes-base.slack"
	TypeCode            = "n8n-nodes-base.code"
	TypeSwitch          = "n8n-nodes-base.switch"
	TypeIf              = "n8n-nodes-base.if"
	TypeMerge           = "n8n-nodes-base.merge"
	TypeSet             = "n8n-nodes-base.set"
	TypeGoogleSheets    = "n8n-nodes-base.googleSheets"
	TypeGmail           = "n8n-nodes-base.gmail"
	TypeAgent           = "@n8n/n8n-nodes-langchain.agent"
	TypeOpenAIChatModel = "@n8n/n8n-nodes-langchain.lmChatOpenAi"
	TypeWindowMemory    = "@n8n/n8n-nodes-langchain.memoryBufferWindow"
	TypeGuardrails      = "@n8n/n8n-nodes-langchain.chainGuardrails"
)

// ManualTrigger adds a trigger started from the editor.
func (b *Builder) ManualTrigger() (NodeRef, error) {
	return b.AddNode("Manual Trigger", TypeManualTrigger, nil)
}

// ErrorTrigger adds the entry node of an error workflow.
func (b *Builder) ErrorTrigger() (NodeRef, error) {
	return b.AddNode("Error Trigger", TypeErrorTrigger, nil)
}

// Webhook adds a webhook trigger listening on path. The webhook id is the
// node id, which keeps the production URL stable across re-imports.
func (b *Builder) Webhook(path, method string) (NodeRef, error) {
	if method == "" {
		method = "POST"
	}
	ref, err := b.AddNode("Webhook", TypeWebhook, map[string]any{
		"path":         path,
		"httpMethod":   method,
		"responseMode": "onReceived",
	})
	if err != nil {
		return ref, err
	}
	err = b.Update(ref, func(n *Node) { n.WebhookID = n.ID })
	return ref, err
}

// AIAgent adds an agent node. params override the defaults key by key.
func (b *Builder) AIAgent(params map[string]any) (NodeRef, error) {
	p := map[string]any{
		"text": "={{$json.query}}",
		"options": map[string]any{
			"systemMessage": "You are a helpful business assistant.",
		},
	}
	maps.Copy(p, params)
	return b.AddNode("AI Agent", TypeAgent, p)
}

// OpenAIChatModel adds a chat model node; model defaults to gpt-4o.
func (b *Builder) OpenAIChatModel(model string) (NodeRef, error) {
	if model == "" {
		model = "gpt-4o"
	}
	return b.AddNode("OpenAI Chat Model", TypeOpenAIChatModel, map[string]any{
		"model": model,
		"options": map[string]any{
			"temperature": 0.7,
		},
	})
}

// WindowMemory adds a buffer window memory node.
func (b *Builder) WindowMemory() (NodeRef, error) {
	return b.AddNode("Window Buffer Memory", TypeWindowMemory, nil)
}

// Guardrails adds an input guardrail node with PII and jailbreak detection on.
func (b *Builder) Guardrails() (NodeRef, error) {
	return b.AddNode("AI Guardrails", TypeGuardrails, map[string]any{
		"options": map[string]any{
			"detectPii":       true,
			"detectJailbreak": true,
		},
	})
}

// HTTPRequest adds an HTTP request node.
func (b *Builder) HTTPRequest(name, method, url string) (NodeRef, error) {
	return b.AddNode(name, TypeHTTPRequest, map[string]any{
		"method": method,
		"url":    url,
	})
}

// Slack adds a node posting message to channel.
func (b *Builder) Slack(name, channel, message string) (NodeRef, error) {
	return b.AddNode(name, TypeSlack, map[string]any{
		"channel": channel,
		"message": message,
	})
}

// Code adds a JavaScript node run once for all items.
func (b *Builder) Code(name, js string) (NodeRef, error) {
	return b.AddNode(name, TypeCode, map[string]any{
		"mode":   "runOnceForAllItems",
		"jsCode": js,
	})
}

// SwitchRule routes items whose value equals Value to Output.
type SwitchRule struct {
	Value  string
	Output int
}

// Switch adds a string switch on expr. Items matching no rule leave through
// fallback; pass a negative fallback to drop them.
func (b *Builder) Switch(name, expr string, rules []SwitchRule, fallback int) (NodeRef, error) {
	rs := make([]any, 0, len(rules))
	for _, r := range rules {
		rs = append(rs, map[string]any{"value2": r.Value, "output": r.Output})
	}
	params := map[string]any{
		"dataType": "string",
		"value1":   expr,
		"rules":    map[string]any{"rules": rs},
	}
	if fallback >= 0 {
		params["fallbackOutput"] = fallback
	}
	return b.AddNode(name, TypeSwitch, params)
}

// If adds a string condition node. Output 0 is the true branch, 1 the false one.
func (b *Builder) If(name, value1, operation, value2 string) (NodeRef, error) {
	return b.AddNode(name, TypeIf, map[string]any{
		"conditions": map[string]any{
			"string": []any{
				map[string]any{"value1": value1, "operation": operation, "value2": value2},
			},
		},
	})
}

// Merge adds a node joining its inputs in mode.
func (b *Builder) Merge(name, mode string) (NodeRef, error) {
	if mode == "" {
		mode = "append"
	}
	return b.AddNode(name, TypeMerge, map[string]any{"mode": mode})
}

// GuardedAgent wires the standard agent star: trigger -> agent on main, and
// model, memory and guardrails feeding the agent on their side channels.
// It returns the agent ref.
func (b *Builder) GuardedAgent(trigger NodeRef, model string, agentParams map[string]any) (NodeRef, error) {
	lm, err := b.OpenAIChatModel(model)
	if err != nil {
		return NodeRef{}, err
	}
	mem, err := b.WindowMemory()
	if err != nil {
		return NodeRef{}, err
	}
	guard, err := b.Guardrails()
	if err != nil {
		return NodeRef{}, err
	}
	agent, err := b.AIAgent(agentParams)
	if err != nil {
		return NodeRef{}, err
	}

	edges := []struct {
		from NodeRef
		ch   Channel
	}{
		{trigger, ChannelMain},
		{lm, ChannelLanguageModel},
		{mem, ChannelMemory},
		{guard, ChannelGuardrails},
	}
	for _, e := range edges {
		if err := b.Connect(e.from, agent, Via(e.ch)); err != nil {
			return NodeRef{}, err
		}
	}
	return agent, nil
}
