// Package registry maps source tokens (slugs and display names) onto the
// descriptors loaded from configuration. Registration is static per run:
// Build is called once at process start and the result is read-only.
package registry

import (
	"fmt"
	"strings"

	"github.com/jihyekim/newsharvest/internal/config"
	"github.com/jihyekim/newsharvest/internal/types"
)

// AllToken expands to every enabled descriptor of the active kind.
const AllToken = "all"

// Registry is the per-run lookup table of source descriptors. Lookups are
// scoped per kind: the same slug may name one source in each family.
type Registry struct {
	ordered []types.Descriptor
	byKey   map[types.SourceKind]map[string]int
	byName  map[types.SourceKind]map[string]int
}

// Build constructs a Registry from a configuration snapshot. Pure: no I/O,
// no process-wide state.
func Build(cfg *config.Config) *Registry {
	r := &Registry{
		byKey:  make(map[types.SourceKind]map[string]int),
		byName: make(map[types.SourceKind]map[string]int),
	}
	add := func(entries []config.SourceEntry, kind types.SourceKind) {
		for _, entry := range entries {
			r.register(entry.Descriptor(kind))
		}
	}
	add(cfg.Sources.HTML, types.KindHTML)
	add(cfg.Sources.Feed, types.KindFeed)
	add(cfg.Sources.Document, types.KindDocument)

	// Keyword categories form the keyword-kind family; each category is a
	// selectable source whose keywords live in the extension bag.
	for _, cat := range cfg.Keyword.Categories {
		name := cat.Name
		if name == "" {
			name = cat.Key
		}
		r.register(types.Descriptor{
			Key:         cat.Key,
			DisplayName: name,
			Kind:        types.KindKeyword,
			Endpoint:    cfg.Keyword.BaseURL,
			Enabled:     cat.Enabled,
			Extra:       map[string]any{"keywords": cat.Keywords},
		})
	}
	return r
}

func (r *Registry) register(d types.Descriptor) {
	idx := len(r.ordered)
	r.ordered = append(r.ordered, d)
	if r.byKey[d.Kind] == nil {
		r.byKey[d.Kind] = make(map[string]int)
		r.byName[d.Kind] = make(map[string]int)
	}
	key := normalizeToken(d.Key)
	if _, taken := r.byKey[d.Kind][key]; !taken {
		r.byKey[d.Kind][key] = idx
	}
	name := normalizeToken(d.DisplayName)
	if name != "" && name != key {
		if _, taken := r.byName[d.Kind][name]; !taken {
			r.byName[d.Kind][name] = idx
		}
	}
}

// Resolve looks a token up within one kind: exact key match first, then
// exact display-name match. A key match never falls through to another
// descriptor's display name.
func (r *Registry) Resolve(token string, kind types.SourceKind) (types.Descriptor, error) {
	normalized := normalizeToken(token)
	if idx, ok := r.byKey[kind][normalized]; ok {
		return r.ordered[idx], nil
	}
	if idx, ok := r.byName[kind][normalized]; ok {
		return r.ordered[idx], nil
	}
	return types.Descriptor{}, &types.ResolutionError{Token: token, Err: types.ErrUnknownSource}
}

// ListByKind returns every descriptor of a kind in registration order,
// disabled ones included (for listings).
func (r *Registry) ListByKind(kind types.SourceKind) []types.Descriptor {
	var out []types.Descriptor
	for _, d := range r.ordered {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// ExpandAll returns every enabled descriptor of a kind in registration order.
func (r *Registry) ExpandAll(kind types.SourceKind) []types.Descriptor {
	var out []types.Descriptor
	for _, d := range r.ordered {
		if d.Kind == kind && d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// Select resolves a token list for the given kind. Tokens may be
// comma-separated; "all" anywhere expands to every enabled descriptor.
// Explicitly named disabled sources fail resolution rather than being
// silently skipped. The result preserves registration order without
// duplicates. An empty token list behaves like "all".
func (r *Registry) Select(tokens []string, kind types.SourceKind) ([]types.Descriptor, error) {
	split := splitTokens(tokens)
	if len(split) == 0 {
		return r.ExpandAll(kind), nil
	}
	for _, token := range split {
		if normalizeToken(token) == AllToken {
			return r.ExpandAll(kind), nil
		}
	}

	wanted := make(map[string]bool, len(split))
	for _, token := range split {
		d, err := r.Resolve(token, kind)
		if err != nil {
			return nil, err
		}
		if !d.Enabled {
			return nil, &types.ResolutionError{
				Token: token,
				Err:   fmt.Errorf("%w: %s", types.ErrSourceDisabled, d.Key),
			}
		}
		wanted[normalizeToken(d.Key)] = true
	}

	var out []types.Descriptor
	for _, d := range r.ordered {
		if d.Kind == kind && wanted[normalizeToken(d.Key)] {
			out = append(out, d)
			delete(wanted, normalizeToken(d.Key))
		}
	}
	return out, nil
}

func splitTokens(tokens []string) []string {
	var out []string
	for _, token := range tokens {
		for _, seg := range strings.Split(token, ",") {
			if seg = strings.TrimSpace(seg); seg != "" {
				out = append(out, seg)
			}
		}
	}
	return out
}

func normalizeToken(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}
