// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/store"
)

// defaultHistoryWindow is the history range served when the caller
// sends no from/to bounds.
const defaultHistoryWindow = 7 * 24 * time.Hour

// Runner executes assessment runs. *assess.Assessor satisfies it.
type Runner interface {
	// Run executes one assessment synchronously.
	Run(ctx context.Context) (*model.RiskAssessment, error)

	// Start executes one assessment in the background, returning the
	// run ID and a channel that yields the terminal error.
	Start(ctx context.Context) (string, <-chan error)
}

// AssessmentStore serves persisted assessments. *store.Store satisfies it.
type AssessmentStore interface {
	Get(ctx context.Context, id string) (*model.RiskAssessment, error)
	Latest(ctx context.Context) (*model.RiskAssessment, error)
	QueryHistory(ctx context.Context, from, to time.Time) ([]model.RiskAssessment, error)
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "sentinel"})
}

// HandleTriggerAssessment starts an assessment run.
//
// # Description
//
// By default the run executes in the background and the response is
// 202 with the run ID for correlation against the live feed. With
// ?wait=true the handler blocks until the run finishes and returns the
// full record, mapping fatal run errors onto HTTP statuses. Only one
// run may be in flight at a time; concurrent triggers get 409.
func HandleTriggerAssessment(runner Runner, inFlight *atomic.Bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !inFlight.CompareAndSwap(false, true) {
			c.JSON(http.StatusConflict, gin.H{"error": "an assessment run is already in flight"})
			return
		}

		wait, _ := strconv.ParseBool(c.Query("wait"))
		if wait {
			defer inFlight.Store(false)

			assessment, err := runner.Run(c.Request.Context())
			if err != nil {
				c.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, assessment)
			return
		}

		// The run outlives this request, so it does not inherit the
		// request context.
		runID, done := runner.Start(context.Background())
		go func() {
			if err := <-done; err != nil {
				slog.Warn("triggered assessment run failed", "run_id", runID, "error", err)
			}
			inFlight.Store(false)
		}()

		c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "status": "accepted"})
	}
}

// HandleGetAssessment fetches one stored assessment by ID. The literal
// ID "latest" returns the most recent record.
func HandleGetAssessment(st AssessmentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		var (
			assessment *model.RiskAssessment
			err        error
		)
		if id == "latest" {
			assessment, err = st.Latest(c.Request.Context())
		} else {
			assessment, err = st.Get(c.Request.Context(), id)
		}

		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "assessment not found"})
			return
		}
		if err != nil {
			slog.Error("failed to load assessment", "assessment_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load assessment"})
			return
		}
		c.JSON(http.StatusOK, assessment)
	}
}

// HandleHistory serves a chronological range of stored assessments.
// from/to are RFC 3339 query parameters; the default range is the last
// seven days.
func HandleHistory(st AssessmentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, err := parseHistoryRange(c.Query("from"), c.Query("to"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		assessments, err := st.QueryHistory(c.Request.Context(), from, to)
		if err != nil {
			slog.Error("history query failed", "from", from, "to", to, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history query failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"from":        from,
			"to":          to,
			"count":       len(assessments),
			"assessments": assessments,
		})
	}
}

func parseHistoryRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	if toRaw != "" {
		parsed, err := time.Parse(time.RFC3339, toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be RFC 3339")
		}
		to = parsed
	}

	from := to.Add(-defaultHistoryWindow)
	if fromRaw != "" {
		parsed, err := time.Parse(time.RFC3339, fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be RFC 3339")
		}
		from = parsed
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to precedes from")
	}
	return from, to, nil
}

// statusForError maps fatal run errors onto HTTP statuses: bad inputs
// and missed quorum are the caller's problem, a broken dependency is a
// gateway issue, anything else is internal.
func statusForError(err error) int {
	var (
		validationErr *model.ValidationError
		quorumErr     *model.QuorumError
		dependencyErr *model.DependencyError
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &quorumErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &dependencyErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
