package core

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/evergreensystems/evergreen-ai/app/core/srv"
	"github.com/evergreensystems/evergreen-ai/app/store"
	"github.com/evergreensystems/evergreen-ai/app/store/sqlstore"
)

// AppStore is the persistence surface the rest of the app sees.
// *sqlstore.Provider implements it; logic tests swap in memory fakes.
type AppStore interface {
	Transaction(ctx context.Context, next func(ctx context.Context) error) error
	ConversationStore() store.ConversationStore
	MessageStore() store.MessageStore
	DocumentStore() store.DocumentStore
	ChunkStore() store.ChunkStore
	AccessTokenStore() store.AccessTokenStore
	Install() error
}

type Core struct {
	cfg CoreConfig
	srv *srv.Srv

	stores     AppStore
	httpClient *http.Client

	metrics *Metrics

	// one in-flight generation turn per conversation
	turnLocks cmap.ConcurrentMap[string, bool]
}

func MustSetupCore(cfg CoreConfig) *Core {
	{
		var writer io.Writer = os.Stdout
		if cfg.Log.Path != "" {
			writer = &lumberjack.Logger{
				Filename:   cfg.Log.Path,
				MaxSize:    500, // megabytes
				MaxBackups: 3,
				MaxAge:     28,   //days
				Compress:   true, // disabled by default
			}
		}
		l := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level: cfg.Log.SlogLevel(),
		}))
		slog.SetDefault(l)
	}

	return New(cfg, sqlstore.MustSetup(cfg.Postgres)(), srv.SetupSrvs(srv.ApplyAI(cfg.AI)))
}

// New assembles a Core from already constructed collaborators. Logic tests
// use it to run turns against memory stores and a stubbed model driver.
func New(cfg CoreConfig, stores AppStore, services *srv.Srv) *Core {
	return &Core{
		cfg:        cfg,
		srv:        services,
		stores:     stores,
		httpClient: &http.Client{Timeout: time.Second * 3},
		metrics:    NewMetrics("evergreen", "core"),
		turnLocks:  cmap.New[bool](),
	}
}

func (s *Core) Cfg() CoreConfig {
	return s.cfg
}

func (s *Core) Store() AppStore {
	return s.stores
}

func (s *Core) Srv() *srv.Srv {
	return s.srv
}

func (s *Core) Metrics() *Metrics {
	return s.metrics
}

func (s *Core) HttpClient() *http.Client {
	return s.httpClient
}

// TryLockTurn claims the single generation slot of a conversation.
// Returns false while another turn is still streaming.
func (s *Core) TryLockTurn(key string) bool {
	return s.turnLocks.SetIfAbsent(key, true)
}

func (s *Core) UnlockTurn(key string) {
	s.turnLocks.Remove(key)
}
