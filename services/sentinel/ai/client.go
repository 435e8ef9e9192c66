// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ai talks to the external analysis collaborator. It builds
// category prompts from collected data, calls one or more
// OpenAI-compatible models, parses the structured JSON they return,
// and merges ensemble responses into a single consensus insight.
package ai

import "context"

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Client is the standard interface for any model backend.
type Client interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Model identifies the backend for logging and consensus bookkeeping.
	Model() string
}
