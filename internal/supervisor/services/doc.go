// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

/*
Package services provides suture.Service wrappers for Crumb components.

Each wrapper translates a component's lifecycle into suture's context-aware
Serve pattern and names itself through fmt.Stringer for supervisor logs.

  - HTTPServerService: ListenAndServe with graceful Shutdown on cancel
  - LedgerGCService: periodic Badger value log GC

The event audit consumer implements suture.Service itself and is added to the
messaging layer directly.
*/
package services
