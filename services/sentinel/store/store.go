// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists finished risk assessments in BadgerDB.
//
// # Description
//
// Assessments are stored under time-ordered keys so range scans return
// them chronologically:
//
//	assessment/<created, zero-padded RFC3339>/<id>  -> JSON record
//	assessment_id/<id>                              -> primary key
//
// The timestamp segment keeps all nine fractional digits so that keys
// of the same width compare lexicographically in time order; created
// times are normalized to UTC before formatting for the same reason.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/storage/badger"
)

// ErrNotFound is returned when no assessment matches the query.
var ErrNotFound = errors.New("assessment not found")

const (
	recordPrefix = "assessment/"
	indexPrefix  = "assessment_id/"

	// keyTimeLayout is RFC3339 with fixed-width fractional seconds.
	// time.RFC3339Nano trims trailing zeros, which breaks the
	// lexicographic-equals-chronological property the key scheme
	// depends on.
	keyTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store persists assessments.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens the assessment store with the given database
// configuration.
func Open(cfg badger.Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := badger.OpenDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("open assessment store: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes the assessment and its id index entry in one
// transaction. Saving the same id twice overwrites the record.
//
// # Outputs
//
//	string - The assessment id, for symmetry with lookups.
//	error - Non-nil if marshaling or the write fails.
func (s *Store) Save(ctx context.Context, a *model.RiskAssessment) (string, error) {
	if a == nil {
		return "", errors.New("assessment must not be nil")
	}
	if a.ID == "" {
		return "", errors.New("assessment id must not be empty")
	}

	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshal assessment %s: %w", a.ID, err)
	}

	primary := recordKey(a.CreatedAt, a.ID)
	err = s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		if err := txn.Set(primary, data); err != nil {
			return err
		}
		return txn.Set(indexKey(a.ID), primary)
	})
	if err != nil {
		return "", fmt.Errorf("save assessment %s: %w", a.ID, err)
	}

	s.logger.Debug("assessment saved",
		"assessment_id", a.ID,
		"seconds_to_midnight", a.SecondsToMidnight)
	return a.ID, nil
}

// Get returns the assessment with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*model.RiskAssessment, error) {
	var a *model.RiskAssessment
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(indexKey(id))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		primary, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		record, err := txn.Get(primary)
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			// Index without record: a partially deleted entry.
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return record.Value(func(val []byte) error {
			a = &model.RiskAssessment{}
			return json.Unmarshal(val, a)
		})
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Latest returns the most recently created assessment, or ErrNotFound
// when the store is empty.
func (s *Store) Latest(ctx context.Context) (*model.RiskAssessment, error) {
	var a *model.RiskAssessment
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the last possible record key, then the first valid
		// position is the newest record.
		it.Seek(append([]byte(recordPrefix), 0xFF))
		if !it.ValidForPrefix([]byte(recordPrefix)) {
			return ErrNotFound
		}
		return it.Item().Value(func(val []byte) error {
			a = &model.RiskAssessment{}
			return json.Unmarshal(val, a)
		})
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// QueryHistory returns the assessments created in [from, to],
// chronological order. An empty range returns an empty slice, not an
// error.
func (s *Store) QueryHistory(ctx context.Context, from, to time.Time) ([]model.RiskAssessment, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %v is before %v", to, from)
	}

	start := []byte(recordPrefix + from.UTC().Format(keyTimeLayout))
	// The trailing 0xFF makes the end bound inclusive for every id
	// suffix at the final timestamp.
	end := append([]byte(recordPrefix+to.UTC().Format(keyTimeLayout)), 0xFF)

	var out []model.RiskAssessment
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix([]byte(recordPrefix)); it.Next() {
			if bytes.Compare(it.Item().Key(), end) > 0 {
				break
			}
			var a model.RiskAssessment
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			})
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SecondsWindow returns the seconds-to-midnight values of assessments
// created at or after since, newest first, capped at limit. Used for
// trend classification.
func (s *Store) SecondsWindow(ctx context.Context, since time.Time, limit int) ([]float64, error) {
	if limit < 1 {
		return nil, nil
	}
	floor := []byte(recordPrefix + since.UTC().Format(keyTimeLayout))

	var out []float64
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append([]byte(recordPrefix), 0xFF)); it.ValidForPrefix([]byte(recordPrefix)); it.Next() {
			if bytes.Compare(it.Item().Key(), floor) < 0 {
				break
			}
			var a model.RiskAssessment
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			})
			if err != nil {
				return err
			}
			out = append(out, float64(a.SecondsToMidnight))
			if len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Name implements the assessment sink interface.
func (s *Store) Name() string { return "store" }

// Record implements the assessment sink interface.
func (s *Store) Record(ctx context.Context, a *model.RiskAssessment) error {
	_, err := s.Save(ctx, a)
	return err
}

func recordKey(created time.Time, id string) []byte {
	return []byte(recordPrefix + created.UTC().Format(keyTimeLayout) + "/" + id)
}

func indexKey(id string) []byte {
	return []byte(indexPrefix + id)
}
