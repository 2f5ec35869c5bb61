package module

import (
	"errors"
	"fmt"
	pathpkg "path"
	"strings"
)

// Factory lazily produces a module instance. Construction is deferred until
// the run-set is resolved so unselected modules cost nothing.
type Factory func() Module

// ErrUnknownModuleID is returned when a selection pattern matches nothing.
var ErrUnknownModuleID = errors.New("unknown module id")

// ErrDuplicateModuleID is returned when the registry receives duplicate IDs.
var ErrDuplicateModuleID = errors.New("duplicate module id")

// ErrInvalidModuleGlob is returned when a selection glob is malformed.
var ErrInvalidModuleGlob = errors.New("invalid module glob")

// entry pairs a descriptor with its factory.
type entry struct {
	desc    Descriptor
	factory Factory
}

// Registry stores module factories with deterministic ordering.
// Registration order defines run order.
type Registry struct {
	ordered []entry
	index   map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]entry)}
}

// Register adds a module factory under its descriptor's ID.
func (r *Registry) Register(desc Descriptor, factory Factory) error {
	if _, exists := r.index[desc.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateModuleID, desc.ID)
	}

	e := entry{desc: desc, factory: factory}
	r.index[desc.ID] = e
	r.ordered = append(r.ordered, e)

	return nil
}

// All returns all descriptors in registration order.
func (r *Registry) All() []Descriptor {
	descriptors := make([]Descriptor, len(r.ordered))
	for i, e := range r.ordered {
		descriptors[i] = e.desc
	}

	return descriptors
}

// Resolve instantiates the run-set: modules whose ID matches any include
// pattern (all when none are given) and no exclude pattern. The returned
// slice preserves registration order so run order is independent of
// selection order.
func (r *Registry) Resolve(include, exclude []string) ([]Module, error) {
	includeSet, err := r.expand(include, true)
	if err != nil {
		return nil, err
	}

	excludeSet, err := r.expand(exclude, false)
	if err != nil {
		return nil, err
	}

	modules := make([]Module, 0, len(r.ordered))

	for _, e := range r.ordered {
		if _, in := includeSet[e.desc.ID]; !in {
			continue
		}

		if _, out := excludeSet[e.desc.ID]; out {
			continue
		}

		modules = append(modules, e.factory())
	}

	return modules, nil
}

// expand resolves selection patterns to a set of registered IDs. With
// emptyMeansAll, an empty pattern list selects every module.
func (r *Registry) expand(patterns []string, emptyMeansAll bool) (map[string]struct{}, error) {
	selected := make(map[string]struct{}, len(r.ordered))

	if len(patterns) == 0 {
		if emptyMeansAll {
			for id := range r.index {
				selected[id] = struct{}{}
			}
		}

		return selected, nil
	}

	for _, rawPattern := range patterns {
		pattern := strings.TrimSpace(rawPattern)

		ids, err := r.resolvePattern(pattern)
		if err != nil {
			return nil, err
		}

		for _, id := range ids {
			selected[id] = struct{}{}
		}
	}

	return selected, nil
}

func (r *Registry) resolvePattern(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModuleID, pattern)
	}

	if !hasGlobMeta(pattern) {
		if _, exists := r.index[pattern]; !exists {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModuleID, pattern)
		}

		return []string{pattern}, nil
	}

	matched := make([]string, 0, len(r.ordered))

	for _, e := range r.ordered {
		isMatch, err := pathpkg.Match(pattern, e.desc.ID)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidModuleGlob, pattern, err)
		}

		if isMatch {
			matched = append(matched, e.desc.ID)
		}
	}

	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModuleID, pattern)
	}

	return matched, nil
}

func hasGlobMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}
