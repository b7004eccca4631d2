package core

import (
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/evergreensystems/evergreen-ai/app/core/srv"
)

func MustLoadBaseConfig(path string) CoreConfig {
	if path == "" {
		return LoadBaseConfigFromENV()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	conf := &CoreConfig{}
	if err = toml.Unmarshal(raw, conf); err != nil {
		panic(err)
	}
	conf.RAG.ApplyDefaults()

	return *conf
}

func LoadBaseConfigFromENV() CoreConfig {
	var c CoreConfig
	c.FromENV()
	c.RAG.ApplyDefaults()
	return c
}

type CoreConfig struct {
	Addr     string       `toml:"addr"`
	Log      Log          `toml:"log"`
	Postgres PGConfig     `toml:"postgres"`
	AI       srv.AIConfig `toml:"ai"`
	RAG      RAGConfig    `toml:"rag"`
}

func (c *CoreConfig) FromENV() {
	c.Addr = os.Getenv("EVERGREEN_API_SERVICE_ADDRESS")
	c.Log.FromENV()
	c.Postgres.FromENV()
	c.AI.FromENV()
}

// RAGConfig holds the retrieval tunables for a conversation turn.
type RAGConfig struct {
	PerScopeLimit      uint64 `toml:"per_scope_limit"`      // top K per retrieval scope
	MergedLimit        int    `toml:"merged_limit"`         // global cap after merge
	EmbeddingTimeout   int    `toml:"embedding_timeout"`    // seconds
	ScopeSearchTimeout int    `toml:"scope_search_timeout"` // seconds
	TurnTimeout        int    `toml:"turn_timeout"`         // seconds, whole generation turn
}

func (c *RAGConfig) ApplyDefaults() {
	if c.PerScopeLimit == 0 {
		c.PerScopeLimit = 20
	}
	if c.MergedLimit == 0 {
		c.MergedLimit = 20
	}
	if c.EmbeddingTimeout == 0 {
		c.EmbeddingTimeout = 10
	}
	if c.ScopeSearchTimeout == 0 {
		c.ScopeSearchTimeout = 5
	}
	if c.TurnTimeout == 0 {
		c.TurnTimeout = 60
	}
}

type PGConfig struct {
	DSN string `toml:"dsn"`
}

func (m *PGConfig) FromENV() {
	m.DSN = os.Getenv("EVERGREEN_API_POSTGRESQL_DSN")
}

func (c PGConfig) FormatDSN() string {
	return c.DSN
}

type Log struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

func (l *Log) FromENV() {
	l.Level = os.Getenv("EVERGREEN_API_LOG_LEVEL")
	l.Path = os.Getenv("EVERGREEN_API_LOG_PATH")
}

func (l *Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
