// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the answer pipeline:
// citations, answers and the loosely typed identifiers the answer service
// emits.
//
// # Key Types
//
//   - ID: identifier that decodes from either a JSON string or number
//   - Citation: one episode excerpt backing part of an answer
//   - Answer: the settled result of one question
//   - Path: which request path produced an answer
package model
