package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/fsmtask"
	"github.com/aretw0/fsmtask/pkg/definition"
	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MachineURI is the resource exposing the machine schema.
const MachineURI = "fsmtask://machine"

// Engine defines what the MCP server needs from the fsmtask engine.
type Engine interface {
	Definition() *definition.Definition
	Describe() string
	Create(ctx context.Context, obj domain.Object) (domain.Object, error)
	SendEventTo(ctx context.Context, searchParams map[string]any, event string, payload any) (domain.Object, error)
	List(ctx context.Context, searchParams map[string]any) ([]domain.Object, error)
	Find(ctx context.Context, searchParams map[string]any) (domain.Object, error)
	AvailableTransitions(ctx context.Context, obj domain.Object, payload any) []domain.Transition
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	idField   string
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithIDField sets the object field tools address tasks by. Defaults to "id".
func WithIDField(field string) Option {
	return func(s *Server) {
		s.idField = field
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		idField: domain.DefaultIDField,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer("fsmtask-mcp", strings.TrimSpace(fsmtask.Version),
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("describe_machine",
		mcp.WithDescription("Describe the state machine: states, events, guards and actions, as Markdown."),
	), s.handleDescribe)

	s.mcpServer.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List stored tasks. Every filter field must equal the task field."),
		mcp.WithObject("filter", mcp.Description("Field/value pairs to match (optional)")),
	), s.handleListTasks)

	s.mcpServer.AddTool(mcp.NewTool("start_task",
		mcp.WithDescription("Put a new task in the initial state and save it. The task must carry an id and no state."),
		mcp.WithObject("task", mcp.Required(), mcp.Description("The task object")),
	), s.handleStartTask)

	s.mcpServer.AddTool(mcp.NewTool("send_event",
		mcp.WithDescription("Send an event to a stored task and save the transitioned task."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("event", mcp.Required(), mcp.Description("Event name")),
		mcp.WithObject("payload", mcp.Description("Event payload passed to guards and actions (optional)")),
	), s.handleSendEvent)

	s.mcpServer.AddTool(mcp.NewTool("available_transitions",
		mcp.WithDescription("List the transitions a stored task can take right now."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
	), s.handleAvailableTransitions)
}

func (s *Server) handleDescribe(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.engine.Describe()), nil
}

func (s *Server) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter, _ := request.GetArguments()["filter"].(map[string]any)
	tasks, err := s.engine.List(ctx, filter)
	if err != nil {
		return toolError("list failed", err), nil
	}
	if tasks == nil {
		tasks = []domain.Object{}
	}
	return jsonResult(tasks)
}

func (s *Server) handleStartTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, ok := request.GetArguments()["task"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("task must be an object"), nil
	}
	created, err := s.engine.Create(ctx, domain.Object(task))
	if err != nil {
		return toolError("start failed", err), nil
	}
	return jsonResult(created)
}

func (s *Server) handleSendEvent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	event, err := request.RequireString("event")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	payload := request.GetArguments()["payload"]

	obj, err := s.engine.SendEventTo(ctx, map[string]any{s.idField: id}, event, payload)
	if err != nil {
		return toolError("send_event failed", err), nil
	}
	return jsonResult(obj)
}

func (s *Server) handleAvailableTransitions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	obj, err := s.engine.Find(ctx, map[string]any{s.idField: id})
	if err != nil {
		return toolError("lookup failed", err), nil
	}
	transitions := s.engine.AvailableTransitions(ctx, obj, nil)
	if transitions == nil {
		transitions = []domain.Transition{}
	}
	return jsonResult(transitions)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(MachineURI, "Machine schema",
		mcp.WithMIMEType("application/json"),
	), s.readMachine)
}

func (s *Server) readMachine(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(s.engine.Definition().Schema())
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      MachineURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// toolError reports refused events as tool results so the client can react to them.
func toolError(msg string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", msg, err))
}
