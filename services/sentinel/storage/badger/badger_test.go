// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDB_InMemory(t *testing.T) {
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("key"), []byte("value"))
	})
	require.NoError(t, err)

	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("key"))
		require.NoError(t, err)

		return item.Value(func(val []byte) error {
			assert.Equal(t, []byte("value"), val)
			return nil
		})
	})
	require.NoError(t, err)
}

func TestOpenDB_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.GCInterval = 0

	db, err := OpenDB(cfg)
	require.NoError(t, err)

	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("persistent-key"), []byte("persistent-value"))
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db2, err := OpenDB(cfg)
	require.NoError(t, err)
	defer db2.Close()

	err = db2.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("persistent-key"))
		require.NoError(t, err)

		return item.Value(func(val []byte) error {
			assert.Equal(t, []byte("persistent-value"), val)
			return nil
		})
	})
	require.NoError(t, err)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestWithTxn_CommitsOnSuccess(t *testing.T) {
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	err = db.WithTxn(context.Background(), func(txn *badger.Txn) error {
		return txn.Set([]byte("a"), []byte("1"))
	})
	require.NoError(t, err)

	err = db.WithReadTxn(context.Background(), func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("a"))
		return err
	})
	assert.NoError(t, err)
}

func TestWithTxn_DiscardsOnError(t *testing.T) {
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("boom")
	err = db.WithTxn(context.Background(), func(txn *badger.Txn) error {
		if err := txn.Set([]byte("a"), []byte("1")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = db.WithReadTxn(context.Background(), func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("a"))
		return err
	})
	assert.ErrorIs(t, err, badger.ErrKeyNotFound)
}

func TestWithTxn_RespectsCancelledContext(t *testing.T) {
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = db.WithTxn(ctx, func(txn *badger.Txn) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	err = db.WithReadTxn(ctx, func(txn *badger.Txn) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewGCRunner_Validation(t *testing.T) {
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	_, err = NewGCRunner(nil, time.Minute, 0.5, nil)
	assert.Error(t, err)

	_, err = NewGCRunner(db.DB, 0, 0.5, nil)
	assert.Error(t, err)

	_, err = NewGCRunner(db.DB, time.Minute, 1.5, nil)
	assert.Error(t, err)

	runner, err := NewGCRunner(db.DB, time.Minute, 0.5, nil)
	require.NoError(t, err)
	runner.Start()
	runner.Stop()
}
