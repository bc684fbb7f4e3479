// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport holds the HTTP plumbing shared by every call to the
// answer service and the site gateway: pooled clients, size-limited body
// reads, JSON and form helpers, and the error taxonomy.
//
// # Error Taxonomy
//
//   - KindValidation: the question was rejected locally, nothing was sent
//   - KindTransport: the request never got a response (DNS, refused, reset)
//   - KindTimeout: the request was aborted by its deadline
//   - KindAuth: the gateway rejected the anti-forgery token
//   - KindServer: a backend answered with a non-2xx status or a failure envelope
//
// Use Classify to map any error onto a Kind; errors.As with *Error recovers
// the full value.
package transport
