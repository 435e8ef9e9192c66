// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package archive writes completed assessments to a Google Cloud
// Storage bucket as a cold audit trail.
//
// Objects are laid out as assessments/<yyyy>/<mm>/<id>.json under an
// optional configured prefix, so a whole month can be listed or
// lifecycle-expired with a single prefix rule. Like the history
// recorder this is an optional sink: upload failures are surfaced to
// the caller, which logs and counts them without failing the run.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// Config carries the GCS destination settings.
//
// CredentialsFile is optional; when empty the client falls back to
// application default credentials.
type Config struct {
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix,omitempty"`
	CredentialsFile string `json:"credentials_file,omitempty"`
}

// Archiver uploads assessment records as JSON objects.
//
// # Thread Safety
//
// Safe for concurrent use; each upload gets its own object writer.
type Archiver struct {
	client *storage.Client
	bucket string
	prefix string
	logger *slog.Logger

	// newWriter is replaced in tests to capture uploads without a
	// live bucket.
	newWriter func(ctx context.Context, object string) io.WriteCloser
}

// New creates the GCS client and returns a ready Archiver.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", cfg.CredentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	a := &Archiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger,
	}
	a.newWriter = func(ctx context.Context, object string) io.WriteCloser {
		w := client.Bucket(cfg.Bucket).Object(object).NewWriter(ctx)
		w.ContentType = "application/json"
		return w
	}
	return a, nil
}

// Name identifies the archiver in sink error metrics and logs.
func (a *Archiver) Name() string { return "archive" }

// Record uploads the assessment to its dated object path.
func (a *Archiver) Record(ctx context.Context, rec *model.RiskAssessment) error {
	if rec == nil {
		return errors.New("cannot archive a nil assessment")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal assessment %s: %w", rec.ID, err)
	}

	object := a.objectName(rec)
	w := a.newWriter(ctx, object)
	if _, err := w.Write(payload); err != nil {
		w.Close()
		return fmt.Errorf("failed to write GCS object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", object, err)
	}

	a.logger.Debug("assessment archived",
		"assessment_id", rec.ID,
		"object", fmt.Sprintf("gs://%s/%s", a.bucket, object))
	return nil
}

// objectName buckets records by creation year and month so prefix
// listings stay bounded.
func (a *Archiver) objectName(rec *model.RiskAssessment) string {
	created := rec.CreatedAt.UTC()
	return path.Join(a.prefix, "assessments", created.Format("2006"), created.Format("01"), rec.ID+".json")
}

// Close releases the underlying client.
func (a *Archiver) Close() error {
	return a.client.Close()
}
