package legalmesh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/legalmesh/a2a"
	"github.com/hupe1980/legalmesh/config"
	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/legal"
	"github.com/hupe1980/legalmesh/legaltools"
	"github.com/hupe1980/legalmesh/logging"
	"github.com/hupe1980/legalmesh/memory"
	"github.com/hupe1980/legalmesh/metrics"
	"github.com/hupe1980/legalmesh/model"
	"github.com/hupe1980/legalmesh/model/anthropic"
	"github.com/hupe1980/legalmesh/model/gemini"
	"github.com/hupe1980/legalmesh/model/openai"
	"github.com/hupe1980/legalmesh/orchestrator"
	"github.com/hupe1980/legalmesh/rag"
	"github.com/hupe1980/legalmesh/runner"
	"github.com/hupe1980/legalmesh/search"
	"github.com/hupe1980/legalmesh/session"
	"github.com/hupe1980/legalmesh/session/redis"
	"github.com/hupe1980/legalmesh/tool"
	"github.com/hupe1980/legalmesh/toolserver"
)

// Components builds every long-lived dependency from a configuration once
// and releases them on Close.
type Components struct {
	Config   *config.Config
	Logger   logging.Logger
	Metrics  *metrics.Collector
	LLM      model.Model
	Embedder model.Embedder

	mu       sync.Mutex
	sessions core.SessionStore
	closers  []func() error
}

// NewComponents validates cfg and connects the model provider.
func NewComponents(ctx context.Context, cfg *config.Config) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Components{
		Config:  cfg,
		Logger:  cfg.Logger(),
		Metrics: metrics.NewCollector(),
	}

	if err := c.initModels(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	c.Logger.Info("components.ready", "provider", cfg.LLM.Provider, "model", c.LLM.Info().Name)

	return c, nil
}

func (c *Components) initModels(ctx context.Context) error {
	llm := c.Config.LLM

	switch strings.ToLower(llm.Provider) {
	case config.ProviderGemini:
		m, err := c.gemini(ctx, llm.APIKey)
		if err != nil {
			return err
		}
		c.LLM, c.Embedder = m, m
	case config.ProviderOpenAI:
		m := openai.NewModel(func(o *openai.Options) {
			o.APIKey = llm.APIKey
			o.BaseURL = llm.BaseURL
			o.Temperature = llm.Temperature
			if name := providerModel(llm.Model); name != "" {
				o.Model = name
			}
			if name := providerModel(llm.EmbeddingModel); name != "" && name != "text-embedding-004" {
				o.EmbeddingModel = name
			}
		})
		c.LLM, c.Embedder = m, m
	case config.ProviderAnthropic:
		c.LLM = anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = llm.APIKey
			o.Temperature = llm.Temperature
			if name := providerModel(llm.Model); name != "" {
				o.Model = anthropicsdk.Model(name)
			}
		})

		emb, err := c.gemini(ctx, llm.EmbeddingAPIKey)
		if err != nil {
			return err
		}
		c.Embedder = emb
	default:
		return fmt.Errorf("legalmesh: unknown provider %q", llm.Provider)
	}

	return nil
}

func (c *Components) gemini(ctx context.Context, apiKey string) (*gemini.Model, error) {
	llm := c.Config.LLM

	m, err := gemini.New(ctx, apiKey, func(o *gemini.Options) {
		o.Temperature = float32(llm.Temperature)
		if strings.HasPrefix(llm.Model, "gemini") {
			o.Model = llm.Model
		}
		if llm.EmbeddingModel != "" {
			o.EmbeddingModel = llm.EmbeddingModel
		}
	})
	if err != nil {
		return nil, err
	}

	c.closers = append(c.closers, m.Close)

	return m, nil
}

// providerModel drops the Gemini default names so non-Gemini providers
// keep their own defaults.
func providerModel(name string) string {
	if strings.HasPrefix(name, "gemini") {
		return ""
	}

	return name
}

// SessionStore returns the configured session store, dialing Redis on
// first use.
func (c *Components) SessionStore(ctx context.Context) (core.SessionStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessions != nil {
		return c.sessions, nil
	}

	cfg := c.Config.Session

	if cfg.Backend != "redis" {
		c.sessions = session.NewInMemoryStore()
		return c.sessions, nil
	}

	store, err := redis.NewFromAddr(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, func(o *redis.Options) {
		o.Namespace = "legalmesh"
		o.TTL = cfg.TTL
	})
	if err != nil {
		return nil, fmt.Errorf("legalmesh: redis session store: %w", err)
	}

	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("legalmesh: redis ping %s: %w", cfg.RedisAddr, err)
	}

	c.closers = append(c.closers, store.Close)
	c.sessions = store

	c.Logger.Info("components.session.redis", "addr", cfg.RedisAddr, "ttl", cfg.TTL.String())

	return store, nil
}

// Searcher returns the SearxNG client.
func (c *Components) Searcher() *search.Client {
	cfg := c.Config.Search

	return search.NewClient(func(o *search.Options) {
		o.BaseURL = cfg.BaseURL
		o.Categories = strings.Join(cfg.Categories, ",")
		o.Language = cfg.Language
		o.MaxResults = cfg.MaxResults
	})
}

// QA returns the document question answering pipeline.
func (c *Components) QA() *rag.QA {
	return rag.NewQA(c.LLM, c.Embedder, func(o *rag.Options) { o.Logger = c.Logger })
}

// RemoteAgent returns the A2A remote delegate, or nil when no card URL is
// configured.
func (c *Components) RemoteAgent() *a2a.RemoteAgent {
	cfg := c.Config.Delegate
	if cfg.CardURL == "" {
		return nil
	}

	client := a2a.NewClient(cfg.CardURL, func(o *a2a.ClientOptions) { o.Logger = c.Logger })

	c.mu.Lock()
	c.closers = append(c.closers, client.Close)
	c.mu.Unlock()

	return a2a.NewRemoteAgent(orchestrator.RemoteDelegateName, client, func(o *a2a.RemoteAgentOptions) {
		o.Description = "Internal legal delegate answering from company documents."
		o.Streaming = cfg.Streaming
	})
}

// NewMesh builds the orchestrator mesh.
func (c *Components) NewMesh(ctx context.Context) (*Mesh, error) {
	sessions, err := c.SessionStore(ctx)
	if err != nil {
		return nil, err
	}

	policy, err := legal.ParseDraftPolicy(c.Config.Workflow.DraftPolicy)
	if err != nil {
		return nil, err
	}

	wf := c.Config.Workflow

	return New(c.LLM, func(o *Options) {
		o.SessionStore = sessions
		o.MemoryStore = memory.NewVectorStore(c.Embedder)
		o.Searcher = c.Searcher()
		if remote := c.RemoteAgent(); remote != nil {
			o.Remote = remote
		}
		o.DraftPolicy = policy
		o.MinContextLength = wf.MinContextLength
		o.MaxModelCalls = wf.MaxModelCalls
		o.Recall = wf.Recall
		o.Metrics = c.Metrics
		o.Logger = c.Logger
	})
}

// NewToolServer builds the MCP server publishing the legal tools.
func (c *Components) NewToolServer() (*toolserver.Server, error) {
	provider := legaltools.New(c.QA(), func(o *legaltools.Options) {
		o.OutputDir = c.Config.Delegate.OutputDir
		o.Logger = c.Logger
	})

	defs := provider.Definitions()
	for i := range defs {
		defs[i].Fn = c.countCalls(defs[i].Name, defs[i].Fn)
	}

	return toolserver.New(defs, func(o *toolserver.Options) {
		o.Path = c.Config.ToolServer.Path
		o.Logger = c.Logger
	})
}

func (c *Components) countCalls(name string, fn func(context.Context, map[string]any) (core.Result, error)) func(context.Context, map[string]any) (core.Result, error) {
	return func(ctx context.Context, args map[string]any) (core.Result, error) {
		res, err := fn(ctx, args)
		if err != nil {
			c.Metrics.ObserveToolCall(name, metrics.StatusError)
			return res, err
		}

		c.Metrics.ObserveToolCall(name, res.Field("status"))

		return res, nil
	}
}

// DelegateTools returns the tools of the remote delegate: the MCP tool
// server's tools when a URL is configured, in-process tools otherwise.
func (c *Components) DelegateTools(ctx context.Context) ([]tool.Tool, error) {
	url := c.Config.ToolServer.URL

	if url == "" {
		return legaltools.New(c.QA(), func(o *legaltools.Options) {
			o.OutputDir = c.Config.Delegate.OutputDir
			o.OnResult = func(name string, res core.Result) { c.Metrics.ObserveToolCall(name, res.Field("status")) }
			o.Logger = c.Logger
		}).Tools(), nil
	}

	ts, err := toolserver.Connect(ctx, url, func(o *toolserver.ToolsetOptions) {
		o.Observe = func(toolCtx *core.ToolContext, name string, args map[string]any, res core.Result) {
			legaltools.Observe(toolCtx, name, args, res)
			c.Metrics.ObserveToolCall(name, res.Field("status"))
		}
		o.Logger = c.Logger
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.closers = append(c.closers, ts.Close)
	c.mu.Unlock()

	return ts.Tools(), nil
}

// NewDelegateServer builds the A2A server of the remote delegate listening
// on host:port.
func (c *Components) NewDelegateServer(ctx context.Context, host string, port int) (*a2a.Server, error) {
	tools, err := c.DelegateTools(ctx)
	if err != nil {
		return nil, err
	}

	r := runner.New(NewDelegateAgent(c.LLM, tools), func(o *runner.Options) {
		o.MaxModelCalls = c.Config.Workflow.MaxModelCalls
		o.Logger = c.Logger
	})

	exec := a2a.NewRunnerExecutor(r, func(o *a2a.ExecutorOptions) {
		o.Documents = legaltools.DocumentsUsed
		o.Logger = c.Logger
	})

	return a2a.NewServer(a2a.LegalAssistantCard(host, port), exec, func(o *a2a.ServerOptions) {
		o.Logger = c.Logger
	}), nil
}

// Close releases clients and connections in reverse order of creation.
func (c *Components) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error

	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	c.closers = nil

	return errors.Join(errs...)
}
