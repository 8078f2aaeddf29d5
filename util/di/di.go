// Package di is a small constructor-injection container used to wire the CLI
// together, backed by go.uber.org/dig.
package di

import (
	"go.uber.org/dig"
)

type config struct {
	providers []provider
}

type provider struct {
	constructor interface{}
	opts        []dig.ProvideOption
}

// Option configures a Container under construction.
type Option interface {
	apply(*config)
}

type Container struct {
	dc *dig.Container
}

// New builds a container from the given providers.
func New(opts ...Option) (*Container, error) {
	conf := config{}
	for _, opt := range opts {
		opt.apply(&conf)
	}

	dc := dig.New(dig.DeferAcyclicVerification())

	for _, p := range conf.providers {
		if err := dc.Provide(p.constructor, p.opts...); err != nil {
			return nil, err
		}
	}

	return &Container{dc: dc}, nil
}

// Invoke calls fn with its arguments resolved from the container.
func (c *Container) Invoke(fn interface{}) error {
	return c.dc.Invoke(fn)
}

// Get resolves a single value from the container.
func Get[T any](c *Container) (T, error) {
	var out T
	err := c.dc.Invoke(func(v T) {
		out = v
	})
	return out, err
}

type providerOpt struct {
	p provider
}

func (po providerOpt) apply(c *config) {
	c.providers = append(c.providers, po.p)
}

// Provider registers a constructor.
func Provider(constructor interface{}, opts ...dig.ProvideOption) Option {
	return &providerOpt{
		p: provider{
			constructor: constructor,
			opts:        opts,
		},
	}
}
