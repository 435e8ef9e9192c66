// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/config"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// DependencyName is how collaborator failures identify themselves in
// the error taxonomy.
const DependencyName = "ai collaborator"

// CollaboratorOptions bound each model call.
type CollaboratorOptions struct {
	// Timeout applies per attempt, not per Assess.
	Timeout time.Duration

	// MaxAttempts bounds transient retries per ensemble member.
	MaxAttempts int

	// RetryDelay is the pause before the second attempt; it doubles
	// after each failure.
	RetryDelay time.Duration
}

func DefaultCollaboratorOptions() CollaboratorOptions {
	return CollaboratorOptions{
		Timeout:     120 * time.Second,
		MaxAttempts: 2,
		RetryDelay:  time.Second,
	}
}

// Collaborator runs the configured models against one category's data
// and returns a consensus insight. Every failure is reported as an
// optional DependencyError so analyzers can degrade instead of abort.
//
// # Thread Safety
//
// Safe for concurrent use.
type Collaborator struct {
	clients []Client
	prompts *PromptBuilder
	params  GenerationParams
	opts    CollaboratorOptions
	logger  *slog.Logger
	now     func() time.Time
}

// NewCollaborator wires prebuilt clients. Most callers want
// NewFromConfig instead.
func NewCollaborator(clients []Client, prompts *PromptBuilder, params GenerationParams, opts CollaboratorOptions, logger *slog.Logger) *Collaborator {
	if prompts == nil {
		prompts = NewPromptBuilder(0, 0)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCollaboratorOptions().Timeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultCollaboratorOptions().MaxAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultCollaboratorOptions().RetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collaborator{
		clients: clients,
		prompts: prompts,
		params:  params,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// NewFromConfig loads the API key, builds one client per configured
// model, and destroys the local key copy once the SDK holds its own.
func NewFromConfig(cfg config.AIConfig, logger *slog.Logger) (*Collaborator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	secret, err := LoadSecret(cfg.APIKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to load api key: %w", err)
	}
	defer secret.Destroy()

	models := make([]string, 0, 1+len(cfg.EnsembleModels))
	seen := make(map[string]struct{})
	for _, m := range append([]string{cfg.Model}, cfg.EnsembleModels...) {
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		models = append(models, m)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("ai collaborator enabled with no model configured")
	}

	clients := make([]Client, 0, len(models))
	for _, m := range models {
		client, err := NewOpenAIClient(secret, m, cfg.BaseURL, systemPrompt, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build client for %s: %w", m, err)
		}
		clients = append(clients, client)
	}

	params := GenerationParams{Temperature: &cfg.Temperature}
	if cfg.MaxTokens > 0 {
		params.MaxTokens = &cfg.MaxTokens
	}
	opts := DefaultCollaboratorOptions()
	if cfg.TimeoutSeconds > 0 {
		opts.Timeout = cfg.Timeout()
	}

	return NewCollaborator(clients, NewPromptBuilder(cfg.ChunkSize, cfg.ChunkOverlap), params, opts, logger), nil
}

// Assess extracts qualitative indicators for one category. With more
// than one client the members run concurrently and their insights are
// merged by Consensus; members that fail are logged and skipped as
// long as at least one succeeds.
func (c *Collaborator) Assess(ctx context.Context, category model.RiskCategory, points []model.DataPoint) (*Insight, error) {
	if c == nil || len(c.clients) == 0 {
		return nil, &model.DependencyError{
			Dependency: DependencyName,
			Optional:   true,
			Err:        errors.New("no model clients configured"),
		}
	}

	prompt, err := c.prompts.CategoryPrompt(category, points, c.now())
	if err != nil {
		return nil, &model.DependencyError{Dependency: DependencyName, Optional: true, Err: err}
	}

	type memberResult struct {
		model   string
		insight *Insight
		err     error
	}
	results := make(chan memberResult, len(c.clients))
	for _, client := range c.clients {
		go func(cl Client) {
			insight, err := c.assessOne(ctx, cl, prompt)
			results <- memberResult{model: cl.Model(), insight: insight, err: err}
		}(client)
	}

	members := make([]memberResult, 0, len(c.clients))
	for range c.clients {
		members = append(members, <-results)
	}
	// Completion order is racy; consensus tie-breaks follow model name.
	sort.Slice(members, func(i, j int) bool { return members[i].model < members[j].model })

	var insights []*Insight
	var errs []error
	for _, m := range members {
		if m.err != nil {
			c.logger.Warn("ensemble member failed",
				"model", m.model,
				"category", string(category),
				"error", m.err,
			)
			errs = append(errs, m.err)
			continue
		}
		insights = append(insights, m.insight)
	}
	if len(insights) == 0 {
		return nil, &model.DependencyError{
			Dependency: DependencyName,
			Optional:   true,
			Err:        errors.Join(errs...),
		}
	}

	merged := Consensus(insights)
	c.logger.Debug("collaborator insight settled",
		"category", string(category),
		"members", len(insights),
		"indicators", len(merged.Indicators),
	)
	return merged, nil
}

func (c *Collaborator) assessOne(ctx context.Context, client Client, prompt string) (*Insight, error) {
	var lastErr error
	delay := c.opts.RetryDelay
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		raw, err := client.Generate(callCtx, prompt, c.params)
		cancel()
		if err != nil {
			lastErr = err
			if !model.IsTransient(err) {
				return nil, err
			}
			c.logger.Warn("model call failed, will retry",
				"model", client.Model(),
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		insight, err := ParseInsight(raw)
		if err != nil {
			// Malformed output will not improve on retry.
			return nil, fmt.Errorf("model %s returned malformed insight: %w", client.Model(), err)
		}
		return insight, nil
	}
	return nil, lastErr
}
