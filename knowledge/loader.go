package knowledge

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Loader reads knowledge base documents from disk. Loading never fails as a
// whole: a missing or malformed section is logged and left empty, and a
// malformed entry is logged and skipped. Deciding whether the result is
// usable (for example, whether it has any policies) is up to the caller.
type Loader struct {
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for section warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var sectionExtensions = []string{".json", ".yaml", ".yml"}

// LoadDir reads the four per-section files (policies.json, entities.json,
// relationships.json, guardrails.json) from dir. A YAML sibling
// (policies.yaml or policies.yml) is used when the JSON file is absent.
// Each file must wrap its section under a top-level key named after it.
func (l *Loader) LoadDir(dir string) *Base {
	b := &Base{}
	for _, section := range []string{SectionPolicies, SectionEntities, SectionRelationships, SectionGuardrails} {
		path, ok := findSectionFile(dir, section)
		if !ok {
			l.logger.Warn("knowledge base section file not found, treating as empty",
				"section", section,
				"dir", dir)
			continue
		}
		doc, err := l.readDocument(path)
		if err != nil {
			l.logger.Warn("failed to read knowledge base section, treating as empty",
				"section", section,
				"path", path,
				"error", err)
			continue
		}
		l.applySection(b, doc, section, path)
	}
	l.logSummary(b, dir)
	return b
}

// LoadFile reads a single-document knowledge base holding all four sections
// at its top level.
func (l *Loader) LoadFile(path string) *Base {
	b := &Base{}
	doc, err := l.readDocument(path)
	if err != nil {
		l.logger.Warn("failed to read knowledge base file, treating as empty",
			"path", path,
			"error", err)
		return b
	}
	for _, section := range []string{SectionPolicies, SectionEntities, SectionRelationships, SectionGuardrails} {
		l.applySection(b, doc, section, path)
	}
	l.logSummary(b, path)
	return b
}

// Parse decodes an in-memory single-document knowledge base.
func (l *Loader) Parse(data []byte, format Format) *Base {
	b := &Base{}
	doc, err := parseDocument(data, format)
	if err != nil {
		l.logger.Warn("failed to parse knowledge base, treating as empty", "error", err)
		return b
	}
	for _, section := range []string{SectionPolicies, SectionEntities, SectionRelationships, SectionGuardrails} {
		l.applySection(b, doc, section, "<memory>")
	}
	return b
}

func findSectionFile(dir, section string) (string, bool) {
	for _, ext := range sectionExtensions {
		path := filepath.Join(dir, section+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

func (l *Loader) readDocument(path string) (value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("file does not exist: %w", err)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return parseDocument(data, FormatFromPath(path))
}

// applySection decodes one section out of doc into b.
func (l *Loader) applySection(b *Base, doc value, section, source string) {
	v, ok, err := lookup(doc, section)
	if err != nil {
		l.logger.Warn("knowledge base document is not a mapping, treating section as empty",
			"section", section,
			"source", source,
			"error", err)
		return
	}
	if !ok {
		l.logger.Warn("knowledge base section missing, treating as empty",
			"section", section,
			"source", source)
		return
	}

	log := l.logger.With("section", section, "source", source)
	switch section {
	case SectionPolicies:
		b.Policies = decodePolicies(v, log)
	case SectionEntities:
		b.Entities = decodeEntities(v, log)
	case SectionRelationships:
		b.Relationships = decodeRelationships(v, log)
	case SectionGuardrails:
		var g map[string]any
		if err := v.decode(&g); err != nil {
			log.Warn("malformed section, treating as empty", "error", err)
			return
		}
		b.Guardrails = g
	}
}

func decodePolicies(v value, log *slog.Logger) []Policy {
	entries, err := v.fields()
	if err != nil {
		log.Warn("malformed section, treating as empty", "error", err)
		return nil
	}
	out := make([]Policy, 0, len(entries))
	for _, f := range entries {
		var p Policy
		if err := f.val.decode(&p); err != nil {
			log.Warn("skipping malformed policy", "policy", f.key, "error", err)
			continue
		}
		p.Key = f.key
		out = append(out, p)
	}
	return out
}

func decodeEntities(v value, log *slog.Logger) []EntityGroup {
	entries, err := v.fields()
	if err != nil {
		log.Warn("malformed section, treating as empty", "error", err)
		return nil
	}
	out := make([]EntityGroup, 0, len(entries))
	for _, f := range entries {
		var names []string
		if err := f.val.decode(&names); err != nil {
			log.Warn("skipping malformed entity list", "entity_type", f.key, "error", err)
			continue
		}
		out = append(out, EntityGroup{Type: f.key, Names: names})
	}
	return out
}

func decodeRelationships(v value, log *slog.Logger) Relationships {
	var r Relationships
	if _, err := v.fields(); err != nil {
		log.Warn("malformed section, treating as empty", "error", err)
		return r
	}
	r.PolicyConnections = decodeConnections(v, "policy_connections", log)
	r.EntityConnections = decodeConnections(v, "entity_connections", log)
	return r
}

func decodeConnections(v value, key string, log *slog.Logger) []Connection {
	list, ok, err := lookup(v, key)
	if err != nil || !ok {
		return nil
	}
	items, err := list.items()
	if err != nil {
		log.Warn("malformed connection list, treating as empty", "list", key, "error", err)
		return nil
	}
	out := make([]Connection, 0, len(items))
	for i, item := range items {
		var c Connection
		if err := item.decode(&c); err != nil {
			log.Warn("skipping malformed connection", "list", key, "index", i, "error", err)
			continue
		}
		if c.From == "" || c.To == "" {
			log.Warn("skipping connection without endpoints", "list", key, "index", i)
			continue
		}
		out = append(out, c)
	}
	return out
}

func (l *Loader) logSummary(b *Base, source string) {
	s := b.Summary()
	l.logger.Info("knowledge base loaded",
		"source", source,
		"policies", s.Policies,
		"entity_types", s.EntityTypes,
		"entities", s.Entities,
		"policy_connections", s.PolicyConnections,
		"entity_connections", s.EntityConnections,
		"guardrails", s.Guardrails)
}
