package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable the configuration reads.
const EnvPrefix = "KGRAPH_"

// ApplyEnv overlays KGRAPH_* environment variables onto cfg. Unset
// variables leave the current value alone; malformed values are errors.
//
//	KGRAPH_DATA_DIR              data_dir
//	KGRAPH_KNOWLEDGE_FILE        knowledge_file
//	KGRAPH_TOP_K                 retrieval.top_k
//	KGRAPH_TRAVERSAL_DEPTH       retrieval.traversal_depth
//	KGRAPH_SEMANTIC_FALLBACK     retrieval.semantic_fallback
//	KGRAPH_SIMILARITY_THRESHOLD  builder.similarity_threshold
//	KGRAPH_MENTION_STRENGTH      builder.mention_strength
//	KGRAPH_STORE_BACKEND         store.backend
//	KGRAPH_STORE_PATH            store.path
//	KGRAPH_STORE_KEY             store.key
//	KGRAPH_REDIS_URL             store.redis.url
//	KGRAPH_ETCD_ENDPOINTS        store.etcd.endpoints (comma-separated)
//	KGRAPH_BADGER_PATH           store.badger.path
//	KGRAPH_PORT                  server.port
//	KGRAPH_GRACEFUL_TIMEOUT      server.graceful_timeout
//	KGRAPH_REGISTRY_ENDPOINTS    registry.endpoints (comma-separated)
//	KGRAPH_LOG_LEVEL             log.level
//	KGRAPH_LOG_FORMAT            log.format
func ApplyEnv(cfg *Config) error {
	e := envReader{}

	e.setString("DATA_DIR", &cfg.DataDir)
	e.setString("KNOWLEDGE_FILE", &cfg.KnowledgeFile)
	e.setInt("TOP_K", &cfg.Retrieval.TopK)
	e.setInt("TRAVERSAL_DEPTH", &cfg.Retrieval.Depth)
	e.setBool("SEMANTIC_FALLBACK", &cfg.Retrieval.SemanticFallback)
	e.setFloat("SIMILARITY_THRESHOLD", &cfg.Builder.SimilarityThreshold)
	e.setFloat("MENTION_STRENGTH", &cfg.Builder.MentionStrength)
	e.setString("STORE_BACKEND", &cfg.Store.Backend)
	e.setString("STORE_PATH", &cfg.Store.Path)
	e.setString("STORE_KEY", &cfg.Store.Key)
	e.setString("REDIS_URL", &cfg.Store.Redis.URL)
	e.setList("ETCD_ENDPOINTS", &cfg.Store.Etcd.Endpoints)
	e.setString("BADGER_PATH", &cfg.Store.Badger.Path)
	e.setInt("PORT", &cfg.Server.Port)
	e.setDuration("GRACEFUL_TIMEOUT", &cfg.Server.GracefulTimeout)
	e.setList("REGISTRY_ENDPOINTS", &cfg.Registry.Endpoints)
	e.setString("LOG_LEVEL", &cfg.Log.Level)
	e.setString("LOG_FORMAT", &cfg.Log.Format)

	return errors.Join(e.errs...)
}

type envReader struct {
	errs []error
}

func (e *envReader) lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(name, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, name, value, err))
}

func (e *envReader) setString(name string, dst *string) {
	if v, ok := e.lookup(name); ok {
		*dst = v
	}
}

func (e *envReader) setInt(name string, dst *int) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = n
}

func (e *envReader) setFloat(name string, dst *float64) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = f
}

func (e *envReader) setBool(name string, dst *bool) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = b
}

func (e *envReader) setDuration(name string, dst *time.Duration) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = d
}

// setList splits a comma-separated value, dropping blanks.
func (e *envReader) setList(name string, dst *[]string) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}
