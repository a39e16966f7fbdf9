package donations

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-donations/core"
	"github.com/goliatone/go-donations/notify"
)

// HookPack groups the pipeline hooks contributed by one extension.
type HookPack struct {
	Name      string
	Completed []core.CompletedHook
	GroupAdd  []core.GroupAddHook
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

// ExtensionHooks collects hooks, notification sinks and command/query bundles
// contributed by downstream packages and turns them into service options.
// Registration order does not matter: everything is applied by name.
type ExtensionHooks struct {
	mu sync.RWMutex

	hookPacks map[string]HookPack
	sinks     map[string]core.Notifier
	bundles   map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		hookPacks: map[string]HookPack{},
		sinks:     map[string]core.Notifier{},
		bundles:   map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterHookPack(pack HookPack) error {
	if h == nil {
		return fmt.Errorf("donations: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("donations: hook pack name is required")
	}
	if len(pack.Completed) == 0 && len(pack.GroupAdd) == 0 {
		return fmt.Errorf("donations: hook pack %q has no hooks", name)
	}
	for _, hook := range pack.Completed {
		if hook == nil {
			return fmt.Errorf("donations: hook pack %q contains nil completed hook", name)
		}
	}
	for _, hook := range pack.GroupAdd {
		if hook == nil {
			return fmt.Errorf("donations: hook pack %q contains nil group add hook", name)
		}
	}

	normalized := HookPack{
		Name:      name,
		Completed: append([]core.CompletedHook(nil), pack.Completed...),
		GroupAdd:  append([]core.GroupAddHook(nil), pack.GroupAdd...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.hookPacks[name]; exists {
		return fmt.Errorf("donations: hook pack %q already registered", name)
	}
	h.hookPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterNotificationSink(name string, sink core.Notifier) error {
	if h == nil {
		return fmt.Errorf("donations: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("donations: notification sink name is required")
	}
	if sink == nil {
		return fmt.Errorf("donations: notification sink %q is nil", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.sinks[name]; exists {
		return fmt.Errorf("donations: notification sink %q already registered", name)
	}
	h.sinks[name] = sink
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("donations: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("donations: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("donations: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("donations: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// Options returns the service options for every registered hook, in pack name
// order. Registered sinks are fanned out behind a single notifier.
func (h *ExtensionHooks) Options(logger core.Logger) []core.Option {
	if h == nil {
		return nil
	}
	packs := h.HookPacks()
	opts := make([]core.Option, 0, len(packs)*2+1)
	for _, pack := range packs {
		for _, hook := range pack.Completed {
			opts = append(opts, core.WithCompletedHook(hook))
		}
		for _, hook := range pack.GroupAdd {
			opts = append(opts, core.WithGroupAddHook(hook))
		}
	}
	if sinks := h.Sinks(); len(sinks) > 0 {
		opts = append(opts, core.WithNotifier(notify.NewFanout(logger, sinks...)))
	}
	return opts
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("donations: command/query service is required")
	}

	h.mu.RLock()
	names := sortedKeys(h.bundles)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) HookPacks() []HookPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HookPack, 0, len(h.hookPacks))
	for _, name := range sortedKeys(h.hookPacks) {
		pack := h.hookPacks[name]
		out = append(out, HookPack{
			Name:      pack.Name,
			Completed: append([]core.CompletedHook(nil), pack.Completed...),
			GroupAdd:  append([]core.GroupAddHook(nil), pack.GroupAdd...),
		})
	}
	return out
}

func (h *ExtensionHooks) Sinks() []core.Notifier {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]core.Notifier, 0, len(h.sinks))
	for _, name := range sortedKeys(h.sinks) {
		out = append(out, h.sinks[name])
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.bundles)
}

func sortedKeys[V any](in map[string]V) []string {
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
