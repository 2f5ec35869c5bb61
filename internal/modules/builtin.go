// Package modules assembles the built-in extraction module registry.
package modules

import (
	"github.com/statweave/statweave/internal/module"
	"github.com/statweave/statweave/internal/modules/kvstats"
	"github.com/statweave/statweave/internal/modules/tsvstats"
)

// Builtin returns a registry with every built-in module registered.
// Registration order defines the default run order.
func Builtin() (*module.Registry, error) {
	registry := module.NewRegistry()

	factories := []struct {
		desc    module.Descriptor
		factory module.Factory
	}{
		{kvstats.New().Descriptor(), kvstats.New},
		{tsvstats.New().Descriptor(), tsvstats.New},
	}

	for _, f := range factories {
		err := registry.Register(f.desc, f.factory)
		if err != nil {
			return nil, err
		}
	}

	return registry, nil
}
