// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway implements both ends of the site gateway relay.
//
// The client side (Client) is the non-streaming request path used when
// the answer stream fails:
//
//  1. POST action=ask_mirror_talk, nonce, question (form-encoded) to the
//     gateway, bounded by a 45 second timeout.
//  2. On 403 from the first attempt, POST action=refresh_nonce, store the
//     new nonce and retry step 1 exactly once.
//  3. If the gateway still fails, POST {question} straight to the answer
//     service's /ask endpoint.
//
// A gateway timeout is returned as-is instead of falling through to the
// direct endpoint, since both paths end at the same answer service.
//
// The server side (Relay) is what `serve` mounts at the gateway path so
// the client works without a WordPress site in front of the answer
// service. Nonces are HS256-signed tokens with a fixed lifetime (Nonces).
package gateway
