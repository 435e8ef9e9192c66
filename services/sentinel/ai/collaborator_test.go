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
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// fakeModel scripts Client behavior for collaborator tests.
type fakeModel struct {
	name     string
	response string
	err      error
	fn       func(ctx context.Context, prompt string) (string, error)

	calls      atomic.Int32
	lastPrompt atomic.Value
}

func (f *fakeModel) Model() string { return f.name }

func (f *fakeModel) Generate(ctx context.Context, prompt string, _ GenerationParams) (string, error) {
	f.calls.Add(1)
	f.lastPrompt.Store(prompt)
	if f.fn != nil {
		return f.fn(ctx, prompt)
	}
	return f.response, f.err
}

func testCollaborator(t *testing.T, clients ...Client) *Collaborator {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := CollaboratorOptions{Timeout: time.Second, MaxAttempts: 2, RetryDelay: time.Millisecond}
	return NewCollaborator(clients, NewPromptBuilder(0, 0), GenerationParams{}, opts, logger)
}

func TestCollaborator_Assess_SingleModel(t *testing.T) {
	m := &fakeModel{name: "gpt-4o", response: validInsightJSON}
	c := testCollaborator(t, m)

	insight, err := c.Assess(context.Background(), model.CategoryArmsControl, nil)
	require.NoError(t, err)
	require.Len(t, insight.Indicators, 2)
	assert.Equal(t, int32(1), m.calls.Load())

	prompt, _ := m.lastPrompt.Load().(string)
	assert.Contains(t, prompt, model.CategoryArmsControl.Display())
}

func TestCollaborator_Assess_EnsembleMerges(t *testing.T) {
	a := &fakeModel{name: "alpha", response: `{
	  "indicators": [{"name": "Missile test", "severity": 0.8, "confidence": 0.6}],
	  "summary": "alpha view"
	}`}
	b := &fakeModel{name: "bravo", response: `{
	  "indicators": [{"name": "missile test", "severity": 0.7, "confidence": 0.6}],
	  "summary": "bravo view"
	}`}
	c := testCollaborator(t, a, b)

	insight, err := c.Assess(context.Background(), model.CategoryNuclearArsenal, nil)
	require.NoError(t, err)
	require.Len(t, insight.Indicators, 1)
	assert.Equal(t, "alpha view", insight.Summary, "member order follows model name, not completion order")
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(1), b.calls.Load())
}

func TestCollaborator_Assess_MemberFailureTolerated(t *testing.T) {
	healthy := &fakeModel{name: "alpha", response: validInsightJSON}
	broken := &fakeModel{name: "bravo", err: &modelCallError{model: "bravo", err: errors.New("401 unauthorized")}}
	c := testCollaborator(t, healthy, broken)

	insight, err := c.Assess(context.Background(), model.CategoryLeadership, nil)
	require.NoError(t, err, "one healthy member should carry the ensemble")
	assert.Len(t, insight.Indicators, 2)
}

// TestCollaborator_Assess_AllFail verifies the degraded-path contract:
// total collaborator failure is an optional dependency error, never a
// fatal one.
func TestCollaborator_Assess_AllFail(t *testing.T) {
	a := &fakeModel{name: "alpha", err: &modelCallError{model: "alpha", err: errors.New("boom")}}
	c := testCollaborator(t, a)

	_, err := c.Assess(context.Background(), model.CategoryCommunications, nil)
	require.Error(t, err)

	var depErr *model.DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.True(t, depErr.Optional)
	assert.False(t, model.Fatal(err))
}

func TestCollaborator_Assess_RetriesTransient(t *testing.T) {
	var attempts atomic.Int32
	m := &fakeModel{name: "alpha"}
	m.fn = func(ctx context.Context, prompt string) (string, error) {
		if attempts.Add(1) == 1 {
			return "", &modelCallError{model: "alpha", err: errors.New("503"), transient: true}
		}
		return validInsightJSON, nil
	}
	c := testCollaborator(t, m)

	insight, err := c.Assess(context.Background(), model.CategoryTechnicalIncident, nil)
	require.NoError(t, err)
	assert.NotNil(t, insight)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestCollaborator_Assess_MalformedNotRetried(t *testing.T) {
	m := &fakeModel{name: "alpha", response: "I decline to answer in JSON."}
	c := testCollaborator(t, m)

	_, err := c.Assess(context.Background(), model.CategoryEconomicPressure, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), m.calls.Load(), "malformed output is permanent")
}

func TestCollaborator_Assess_NoClients(t *testing.T) {
	c := testCollaborator(t)

	_, err := c.Assess(context.Background(), model.CategoryRegionalConflicts, nil)
	var depErr *model.DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.True(t, depErr.Optional)
}
