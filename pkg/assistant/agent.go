// Package assistant drives conversational turns and morning briefings on top
// of the session store, the history formatter and a language-model agent.
package assistant

import "context"

// Turn is one prior message handed to the agent as chat history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AgentRequest is the input of a single agent invocation.
type AgentRequest struct {
	Input       string `json:"input"`
	ChatHistory []Turn `json:"chat_history,omitempty"`
}

// AgentResponse is the agent's final answer.
type AgentResponse struct {
	Output string `json:"output"`
}

// Agent is a language model able to answer a request, possibly calling tools
// on the way.
type Agent interface {
	Invoke(ctx context.Context, req AgentRequest) (AgentResponse, error)
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc func(ctx context.Context, req AgentRequest) (AgentResponse, error)

// Invoke calls f(ctx, req).
func (f AgentFunc) Invoke(ctx context.Context, req AgentRequest) (AgentResponse, error) {
	return f(ctx, req)
}
