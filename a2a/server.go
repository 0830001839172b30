package a2a

import (
	"net/http"

	a2ago "github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"

	"github.com/hupe1980/legalmesh/logging"
)

// ServerOptions configure a Server.
type ServerOptions struct {
	// HandlerOptions are passed to a2asrv.NewHandler, e.g. a task store.
	HandlerOptions []a2asrv.RequestHandlerOption
	Logger         logging.Logger
}

// Server serves an agent card and the A2A JSON-RPC transport for one
// executor. It implements http.Handler.
type Server struct {
	card *a2ago.AgentCard
	mux  *http.ServeMux
	opts ServerOptions
}

// NewServer creates a server publishing card and delegating to executor.
// The card is served at WellKnownCardPath and LegacyCardPath, JSON-RPC
// requests are accepted on every other path.
func NewServer(card *a2ago.AgentCard, executor a2asrv.AgentExecutor, optFns ...func(o *ServerOptions)) *Server {
	opts := ServerOptions{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	cardHandler := a2asrv.NewStaticAgentCardHandler(card)

	mux := http.NewServeMux()
	mux.Handle(WellKnownCardPath, cardHandler)
	mux.Handle(LegacyCardPath, cardHandler)
	mux.Handle("/", a2asrv.NewJSONRPCHandler(a2asrv.NewHandler(executor, opts.HandlerOptions...)))

	return &Server{card: card, mux: mux, opts: opts}
}

// Card returns the published agent card.
func (s *Server) Card() *a2ago.AgentCard { return s.card }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.opts.Logger.Debug("a2a.http.request", "method", r.Method, "path", r.URL.Path)
	s.mux.ServeHTTP(w, r)
}
