// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package env

import (
	"fmt"
	"testing"

	"github.com/absmach/certkeeper/internal/server"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		desc           string
		config         server.Config
		expectedConfig server.Config
		options        []Options
		env            map[string]string
		err            error
	}{
		{
			desc: "parse with env variables",
			env: map[string]string{
				"HOST": "localhost",
				"PORT": "8080",
			},
			config: server.Config{},
			expectedConfig: server.Config{
				Host: "localhost",
				Port: "8080",
			},
			err: nil,
		},
		{
			desc: "parse with prefix",
			env: map[string]string{
				"CK_HOST": "localhost",
				"CK_PORT": "8080",
			},
			config:  server.Config{},
			options: []Options{{Prefix: "CK_"}},
			expectedConfig: server.Config{
				Host: "localhost",
				Port: "8080",
			},
			err: nil,
		},
		{
			desc: "parse with empty env",
			env:  map[string]string{},
			config: server.Config{
				Host: "localhost",
				Port: "8080",
			},
			expectedConfig: server.Config{
				Host: "localhost",
				Port: "8080",
			},
			err: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			opts := append(tc.options, Options{Environment: tc.env})
			err := Parse(&tc.config, opts...)
			assert.Equal(t, tc.err, err, fmt.Sprintf("expected %v got %v", tc.err, err))
			assert.Equal(t, tc.expectedConfig, tc.config)
		})
	}
}
