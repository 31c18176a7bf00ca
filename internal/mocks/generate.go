// Package mocks holds go:generate directives for gomock.
package mocks

// Generate gomock types for the dependencies of the resolvers.
// NOTE: run `go generate ./...` from repo root to (re)create mocks.
// Requires: go install go.uber.org/mock/mockgen@latest

// fetch interface
//   - Fetcher
// cache interface
//   - Store

//go:generate mockgen -destination=fetch_mock.go -package=mocks github.com/ShubyM/aws-readonly-ops/pkg/fetch Fetcher
//go:generate mockgen -destination=cache_mock.go -package=mocks github.com/ShubyM/aws-readonly-ops/pkg/cache Store
