package transform

import (
	"fmt"

	"github.com/mitchellh/go-homedir"
)

type options struct {
	home      string
	artifacts *ArtifactTable
}

type Option func(*options)

// WithHome overrides the home directory used for ~ expansion and contraction.
func WithHome(dir string) Option {
	return func(o *options) {
		o.home = dir
	}
}

func WithArtifacts(t *ArtifactTable) Option {
	return func(o *options) {
		o.artifacts = t
	}
}

func buildOptions(opts []Option) (options, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.home == "" {
		home, err := homedir.Dir()
		if err != nil {
			return o, fmt.Errorf("error finding home directory: %w", err)
		}
		o.home = home
	}
	if o.artifacts == nil {
		o.artifacts = DefaultArtifacts()
	}
	return o, nil
}
