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

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient adapts any OpenAI-compatible chat endpoint to the
// Client interface. The system prompt is fixed at construction so
// every call carries the same analytical framing.
type OpenAIClient struct {
	client *openai.Client
	model  string
	system string
	logger *slog.Logger
}

// NewOpenAIClient builds a client for the given model. The API key is
// opened from its enclave only for the duration of SDK construction.
// An empty baseURL targets the provider default.
func NewOpenAIClient(secret *Secret, model, baseURL, system string, logger *slog.Logger) (*OpenAIClient, error) {
	if model == "" {
		return nil, fmt.Errorf("openai client requires a model name")
	}
	if logger == nil {
		logger = slog.Default()
	}

	apiKey, err := secret.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open api key: %w", err)
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	logger.Info("initializing analysis model client", "model", model, "base_url", baseURL)
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		system: system,
		logger: logger,
	}, nil
}

func (o *OpenAIClient) Model() string { return o.model }

// Generate implements the Client interface.
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	o.logger.Debug("generating analysis", "model", o.model)

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyAPIError(o.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", &modelCallError{model: o.model, err: errors.New("response carried no choices")}
	}

	o.logger.Debug("received model response",
		"model", o.model,
		"finish_reason", resp.Choices[0].FinishReason,
	)
	return resp.Choices[0].Message.Content, nil
}

// modelCallError wraps a backend failure with retry classification.
// Rate limiting and server-side failures are worth another attempt;
// auth and request-shape failures are not.
type modelCallError struct {
	model     string
	err       error
	transient bool
}

func (e *modelCallError) Error() string {
	return fmt.Sprintf("model %s call failed: %v", e.model, e.err)
}

func (e *modelCallError) Unwrap() error   { return e.err }
func (e *modelCallError) Transient() bool { return e.transient }

func classifyAPIError(model string, err error) error {
	if errors.Is(err, context.Canceled) {
		return &modelCallError{model: model, err: err}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &modelCallError{
			model:     model,
			err:       err,
			transient: apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &modelCallError{
			model:     model,
			err:       err,
			transient: reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500,
		}
	}
	// Transport-level failures (connection refused, timeout) surface as
	// plain errors from the SDK. Treat them as transient.
	return &modelCallError{model: model, err: err, transient: true}
}
