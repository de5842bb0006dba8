// Package routing implements the Router Options & Guidelines Surface:
// per-router/per-ClusterSet option storage and named routing guideline
// documents, grounded on set_instance_option.cc's option-tag validation.
package routing

import (
	"context"
	"fmt"

	"github.com/myshdb/clusteradm/internal/dbaerr"
	"github.com/myshdb/clusteradm/internal/metadata"
)

// OptionKind distinguishes built-in, typed router/cluster option tags from
// arbitrary user tags (prefixed with "_" vs not), matching the
// set_instance_option validation split.
type OptionKind int

const (
	OptionKindUser OptionKind = iota
	OptionKindBuiltinBool
	OptionKindBuiltinString
)

// builtinTags enumerates the option tags mysql-shell treats specially,
// along with their expected kind. Anything not listed here is a free-form
// user tag and accepts any JSON-serializable value.
var builtinTags = map[string]OptionKind{
	"_hidden":                  OptionKindBuiltinBool,
	"_disconnect_existing_sessions_when_hidden": OptionKindBuiltinBool,
	"tag:_hidden":              OptionKindBuiltinBool,
	"label":                    OptionKindBuiltinString,
}

// Manager applies and reads router/routing options and routing guideline
// documents through the metadata store.
type Manager struct {
	Store *metadata.Store
}

// New binds a routing Manager to the metadata store.
func New(store *metadata.Store) *Manager {
	return &Manager{Store: store}
}

// SetInstanceOption applies a single tag=value option to a member,
// mirroring set_instance_option's validation: a built-in Bool tag
// coerces common truthy/falsy string spellings, any other built-in tag
// rejects a value that isn't already of the expected type, and any other
// tag name is accepted verbatim as free-form user data (Open Question #1
// in the design notes).
func SetInstanceOption(tag string, value any) (any, error) {
	kind, known := builtinTags[tag]
	if !known {
		return value, nil
	}
	switch kind {
	case OptionKindBuiltinBool:
		return coerceBool(tag, value)
	case OptionKindBuiltinString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("routing: option %q must be a string", tag)
		}
		return s, nil
	default:
		return value, nil
	}
}

func coerceBool(tag string, value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch v {
		case "1", "true", "TRUE", "ON", "on":
			return true, nil
		case "0", "false", "FALSE", "OFF", "off":
			return false, nil
		default:
			return false, fmt.Errorf("routing: option %q does not accept value %q", tag, v)
		}
	case int:
		return v != 0, nil
	default:
		return false, fmt.Errorf("routing: option %q must be a boolean-like value, got %T", tag, value)
	}
}

// SetRoutingOption persists a ClusterSet- or router-scoped routing option.
// Activating a routing_guideline requires every router currently registered
// against the ClusterSet to understand that guideline's schema version;
// routers report the highest version they support, and a guideline newer
// than the lowest of those would silently be ignored by at least one
// router, so the option is refused instead.
func (m *Manager) SetRoutingOption(ctx context.Context, opts *metadata.RoutingOptions, key string, value any) error {
	if opts.Options == nil {
		opts.Options = map[string]any{}
	}
	coerced, err := SetInstanceOption(key, value)
	if err != nil {
		return err
	}

	if key == "routing_guideline" {
		if err := m.checkGuidelineCompatibility(ctx, opts, coerced); err != nil {
			return err
		}
	}

	opts.Options[key] = coerced
	return nil
}

func (m *Manager) checkGuidelineCompatibility(ctx context.Context, opts *metadata.RoutingOptions, value any) error {
	name, ok := value.(string)
	if !ok {
		return fmt.Errorf("routing: option %q must name a guideline", "routing_guideline")
	}
	if opts.ClusterSetID == nil {
		return fmt.Errorf("routing: routing_guideline can only be set for a cluster set-scoped option")
	}
	g, err := m.GetRoutingGuideline(ctx, *opts.ClusterSetID, name)
	if err != nil {
		return fmt.Errorf("routing: %w", err)
	}
	routers, err := m.Store.ListRouters(ctx, *opts.ClusterSetID)
	if err != nil {
		return fmt.Errorf("routing: listing registered routers: %w", err)
	}
	for _, r := range routers {
		if r.SupportedGuidelineVersion < g.Version {
			return dbaerr.New("setRoutingOption", dbaerr.CodeRouterUnsupportedFeature,
				"router %q only supports routing guideline schema version %d, but %q is version %d", r.Name, r.SupportedGuidelineVersion, name, g.Version)
		}
	}
	return nil
}

// CreateRoutingGuideline registers a new named guideline document for a
// ClusterSet, optionally activating it immediately.
func (m *Manager) CreateRoutingGuideline(ctx context.Context, clusterSetID int64, name, document string, active bool) (*metadata.RoutingGuideline, error) {
	g := &metadata.RoutingGuideline{ClusterSetID: clusterSetID, Name: name, Document: document, Active: active}
	id, err := m.Store.UpsertRoutingGuideline(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("routing: creating guideline %q: %w", name, err)
	}
	g.ID = id
	return g, nil
}

// RemoveRoutingGuideline removes a guideline by overwriting it with an
// inactive placeholder whose document is "{}"; the row stays, but its
// previous document is not kept. A guideline
// currently active for its ClusterSet is refused: routers may be routing
// traffic against it right now, so it must be deactivated (by activating a
// different guideline, or by leaving the ClusterSet with no active
// guideline at all) before it can be removed.
func (m *Manager) RemoveRoutingGuideline(ctx context.Context, clusterSetID int64, name string) error {
	existing, err := m.GetRoutingGuideline(ctx, clusterSetID, name)
	if err != nil {
		return fmt.Errorf("routing: %w", err)
	}
	if existing.Active {
		return dbaerr.New("removeRoutingGuideline", dbaerr.CodeRoutingGuidelineInUse,
			"routing guideline %q is active for this cluster set; deactivate it before removing", name)
	}
	_, err = m.Store.UpsertRoutingGuideline(ctx, &metadata.RoutingGuideline{
		ClusterSetID: clusterSetID, Name: name, Document: "{}", Active: false,
	})
	return err
}

// GetRoutingGuideline returns the named guideline, or the active one if
// name is empty.
func (m *Manager) GetRoutingGuideline(ctx context.Context, clusterSetID int64, name string) (*metadata.RoutingGuideline, error) {
	all, err := m.Store.ListRoutingGuidelines(ctx, clusterSetID)
	if err != nil {
		return nil, err
	}
	for _, g := range all {
		if name == "" && g.Active {
			return g, nil
		}
		if g.Name == name {
			return g, nil
		}
	}
	return nil, fmt.Errorf("routing: no routing guideline %q found", name)
}

// ImportRoutingGuideline installs an externally authored guideline
// document verbatim (the document's internal structure is opaque to this
// module per the spec's Non-goals).
func (m *Manager) ImportRoutingGuideline(ctx context.Context, clusterSetID int64, name, document string) (*metadata.RoutingGuideline, error) {
	return m.CreateRoutingGuideline(ctx, clusterSetID, name, document, true)
}
