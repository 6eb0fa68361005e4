// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package env

import (
	"github.com/caarlos0/env/v11"
)

// Options is a wrapper around the env parsing options.
type Options struct {
	// Environment keys and values that will be accessible for the service.
	Environment map[string]string

	// TagName specifies another tagname to use rather than the default env.
	TagName string

	// RequiredIfNoDef automatically sets all env as required if they do not declare 'envDefault'.
	RequiredIfNoDef bool

	// OnSet allows to run a function when a value is set.
	OnSet env.OnSetFn

	// Prefix define a prefix for each key.
	Prefix string
}

// Parse parses the environment variables into the provided struct.
func Parse(v interface{}, opts ...Options) error {
	altOpts := []env.Options{}

	for _, opt := range opts {
		altOpts = append(altOpts, env.Options{
			Environment:     opt.Environment,
			TagName:         opt.TagName,
			RequiredIfNoDef: opt.RequiredIfNoDef,
			OnSet:           opt.OnSet,
			Prefix:          opt.Prefix,
		})
	}

	return env.ParseWithOptions(v, mergeOptions(altOpts...))
}

func mergeOptions(opts ...env.Options) env.Options {
	merged := env.Options{}
	for _, opt := range opts {
		if opt.Environment != nil {
			merged.Environment = opt.Environment
		}
		if opt.TagName != "" {
			merged.TagName = opt.TagName
		}
		if opt.RequiredIfNoDef {
			merged.RequiredIfNoDef = opt.RequiredIfNoDef
		}
		if opt.OnSet != nil {
			merged.OnSet = opt.OnSet
		}
		if opt.Prefix != "" {
			merged.Prefix = opt.Prefix
		}
	}

	return merged
}
