package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/soyeahso/agentloop/internal/agent"
	"github.com/soyeahso/agentloop/internal/channel"
	"github.com/soyeahso/agentloop/internal/llm"
	"github.com/soyeahso/agentloop/internal/storage"
	"github.com/soyeahso/agentloop/internal/store"
	"github.com/soyeahso/agentloop/internal/ui"
	"github.com/soyeahso/agentloop/internal/version"
)

// llmCallTimeout bounds one chat.send or generate.text request.
const llmCallTimeout = 5 * time.Minute

func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("/", handleNotFound)
}

func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("status", s.rpcStatus)
	s.Handle("tools.list", s.rpcToolsList)
	s.Handle("chat.send", s.rpcChatSend)
	s.Handle("generate.text", s.rpcGenerateText)
	s.Handle("storage.inspect", s.rpcStorageInspect)
	s.Handle("storage.clear", s.rpcStorageClear)
	s.Handle("knowledge.search", s.rpcKnowledgeSearch)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:  "ok",
		Version: s.version,
		Clients: s.clients.Count(),
	})
}

// StatusResponse summarises the running gateway.
type StatusResponse struct {
	Version   string           `json:"version"`
	Commit    string           `json:"commit"`
	UptimeMs  int64            `json:"uptimeMs"`
	Clients   int              `json:"clients"`
	Provider  string           `json:"provider"`
	Model     string           `json:"model"`
	MaxRounds int              `json:"maxRounds"`
	Tools     []string         `json:"tools"`
	Methods   []string         `json:"methods"`
	Channels  []channel.Status `json:"channels"`
}

func (s *Server) rpcStatus(rc *RequestContext) {
	st := StatusResponse{
		Version:   s.version,
		Commit:    version.Get().Commit,
		UptimeMs:  time.Since(s.startedAt).Milliseconds(),
		Clients:   s.clients.Count(),
		Provider:  s.cfg.Model.Provider,
		Model:     s.cfg.Model.Model,
		MaxRounds: s.maxRounds(),
		Tools:     []string{},
		Methods:   s.Methods(),
		Channels:  []channel.Status{},
	}
	if s.loop != nil {
		st.Tools = s.loop.Tools().Names()
	}
	if s.channels != nil {
		st.Channels = s.channels.Status()
	}
	rc.Respond(st)
}

func (s *Server) rpcToolsList(rc *RequestContext) {
	if s.loop == nil {
		rc.RespondError(CodeUnavailable, "no agent loop configured")
		return
	}
	rc.Respond(map[string]any{"tools": s.loop.Tools().Snapshot().Definitions()})
}

type chatSendParams struct {
	Message   string `json:"message"`
	MaxRounds int    `json:"maxRounds,omitempty"`
	ChannelID string `json:"channelId,omitempty"`
}

// ChatResult is the chat.send response payload.
type ChatResult struct {
	Text       string    `json:"text"`
	Final      bool      `json:"final"`
	RoundsUsed int       `json:"roundsUsed"`
	ModelCalls int       `json:"modelCalls"`
	ToolCalls  int       `json:"toolCalls"`
	Model      string    `json:"model,omitempty"`
	Usage      llm.Usage `json:"usage"`
	DurationMs int64     `json:"durationMs"`
}

// chatRenderEvent carries one rendered element produced during chat.send.
type chatRenderEvent struct {
	RequestID string          `json:"requestId"`
	Element   json.RawMessage `json:"element"`
}

func (s *Server) rpcChatSend(rc *RequestContext) {
	if s.loop == nil {
		rc.RespondError(CodeUnavailable, "no LLM provider configured")
		return
	}

	var p chatSendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.Message == "" {
		rc.RespondError(CodeInvalidParams, "message is required")
		return
	}
	if p.MaxRounds == 0 {
		p.MaxRounds = s.maxRounds()
	}
	if p.ChannelID == "" {
		p.ChannelID = "gateway"
	}

	system := agent.BuildSystemPrompt(agent.PromptConfig{
		AgentName: s.cfg.Agent.Name,
		Base:      s.cfg.Agent.SystemPrompt,
		ToolNames: s.loop.Tools().Names(),
		ChannelID: p.ChannelID,
		UserName:  rc.Client.Info.name(),
	})

	ctx, cancel := context.WithTimeout(rc.Context, llmCallTimeout)
	defer cancel()

	res, err := s.loop.ProcessPrompt(ctx, agent.Request{
		System:    system,
		User:      p.Message,
		MaxRounds: p.MaxRounds,
		Renderer: agent.RenderFunc(func(el ui.Element) error {
			b, err := ui.Marshal(el)
			if err != nil {
				return err
			}
			return rc.Emit(EventChatRender, chatRenderEvent{RequestID: rc.Frame.ID, Element: b})
		}),
	})
	if err != nil {
		if errors.Is(err, agent.ErrInvalidMaxRounds) {
			rc.RespondError(CodeInvalidParams, err.Error())
			return
		}
		rc.RespondError(CodeAgentError, err.Error())
		return
	}

	rc.Respond(ChatResult{
		Text:       res.Text,
		Final:      res.Final,
		RoundsUsed: res.RoundsUsed,
		ModelCalls: res.ModelCalls,
		ToolCalls:  res.ToolCalls,
		Model:      res.Model,
		Usage:      res.Usage,
		DurationMs: res.Duration.Milliseconds(),
	})
}

type generateTextParams struct {
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
}

func (s *Server) rpcGenerateText(rc *RequestContext) {
	if s.generator == nil {
		rc.RespondError(CodeUnavailable, "no LLM provider configured")
		return
	}
	var p generateTextParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.Prompt == "" {
		rc.RespondError(CodeInvalidParams, "prompt is required")
		return
	}

	ctx, cancel := context.WithTimeout(rc.Context, llmCallTimeout)
	defer cancel()

	text, err := s.generator.GenerateText(ctx, p.System, p.Prompt)
	if err != nil {
		rc.RespondError(CodeAgentError, err.Error())
		return
	}
	rc.Respond(map[string]any{"text": text})
}

// StorageReport is storage.Info plus human-readable sizes.
type StorageReport struct {
	storage.Info
	UsedFormatted  string `json:"usedFormatted"`
	QuotaFormatted string `json:"quotaFormatted"`
}

func (s *Server) rpcStorageInspect(rc *RequestContext) {
	if s.storage == nil {
		rc.RespondError(CodeUnavailable, "no model cache configured")
		return
	}
	info := s.storage.Inspect(rc.Context)
	rc.Respond(StorageReport{
		Info:           info,
		UsedFormatted:  storage.FormatBytes(info.TotalStorageUsed),
		QuotaFormatted: storage.FormatBytes(info.StorageQuota),
	})
}

func (s *Server) rpcStorageClear(rc *RequestContext) {
	if s.storage == nil {
		rc.RespondError(CodeUnavailable, "no model cache configured")
		return
	}
	cleared, err := s.storage.Clear(rc.Context)
	if err != nil {
		rc.RespondError(CodeInternal, err.Error())
		return
	}
	rc.Respond(map[string]any{"cleared": cleared})
}

type knowledgeSearchParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func (s *Server) rpcKnowledgeSearch(rc *RequestContext) {
	if s.knowledge == nil {
		rc.RespondError(CodeUnavailable, "no knowledge store configured")
		return
	}
	var p knowledgeSearchParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.Query == "" {
		rc.RespondError(CodeInvalidParams, "query is required")
		return
	}
	docs, err := s.knowledge.Search(rc.Context, p.Query, p.Limit)
	if err != nil {
		rc.RespondError(CodeInternal, err.Error())
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	rc.Respond(map[string]any{"results": docs})
}

func (s *Server) maxRounds() int {
	if s.cfg.Agent.MaxRounds > 0 {
		return s.cfg.Agent.MaxRounds
	}
	return agent.DefaultMaxRounds
}
