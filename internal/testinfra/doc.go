// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

// Package testinfra starts real services in Docker for integration tests.
//
// Every file is behind the integration build tag:
//
//	go test -tags integration ./internal/events/...
//
// Tests call SkipIfNoDocker first so the suite still passes on machines
// without a Docker daemon. The first run pulls the images.
package testinfra
