// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds process configuration. The environment is read only
// by FromEnv, which the command entry point calls once.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the runtime configuration of the classifier.
type Config struct {
	// CacheDir is the root of the local cache layout.
	CacheDir string `env:"AWS_API_MCP_CACHE_DIR"`
	// ServiceReferenceURL is the directory endpoint.
	ServiceReferenceURL string `env:"AWS_API_MCP_SERVICE_REFERENCE_URL" envDefault:"https://servicereference.us-east-1.amazonaws.com/"`
	// RequestTimeout bounds each directory and per-service fetch.
	RequestTimeout time.Duration `env:"AWS_API_MCP_REQUEST_TIMEOUT" envDefault:"5s"`
	// CacheBackend is "filesystem" or "memory".
	CacheBackend string `env:"AWS_API_MCP_CACHE_BACKEND" envDefault:"filesystem"`

	// Optional S3 mirror of the cache.
	CacheBucket       string `env:"AWS_API_MCP_CACHE_BUCKET"`
	CacheBucketPrefix string `env:"AWS_API_MCP_CACHE_BUCKET_PREFIX"`
	CacheRegion       string `env:"AWS_API_MCP_CACHE_REGION"`
	CacheEndpoint     string `env:"AWS_API_MCP_CACHE_ENDPOINT"`

	// MetadataFile replaces the bundled API metadata.
	MetadataFile string `env:"AWS_API_MCP_METADATA_FILE"`
	// PolicyFile adds custom read-only operations and overrides.
	PolicyFile string `env:"AWS_API_MCP_POLICY_FILE"`
}

// FromEnv parses Config from the environment and fills in defaults that
// depend on the host.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.CacheDir == "" {
		dir, err := DefaultCacheDir()
		if err != nil {
			return Config{}, err
		}
		cfg.CacheDir = dir
	}
	return cfg, nil
}

// DefaultCacheDir returns ~/.aws/aws-api-mcp/cache.
func DefaultCacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".aws", "aws-api-mcp", "cache"), nil
}
