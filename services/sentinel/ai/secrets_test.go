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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSecret_MissingEnv(t *testing.T) {
	_, err := LoadSecret("SENTINEL_TEST_KEY_THAT_DOES_NOT_EXIST")
	assert.Error(t, err)
}

// TestSecret_OpenRoundTrip verifies seal and repeated open.
//
// # Description
//
// The enclave must yield the original key on every Open until the
// secret is destroyed. On hosts without usable mlock limits the test
// takes the documented insecure fallback.
func TestSecret_OpenRoundTrip(t *testing.T) {
	if ok, _ := IsMlockAvailable(); !ok {
		t.Setenv("SENTINEL_INSECURE_MEMORY", "true")
	}
	t.Setenv("SENTINEL_TEST_API_KEY", "sk-sentinel-roundtrip")

	secret, err := LoadSecret("SENTINEL_TEST_API_KEY")
	require.NoError(t, err)
	defer secret.Destroy()

	for i := 0; i < 2; i++ {
		got, err := secret.Open()
		require.NoError(t, err)
		assert.Equal(t, "sk-sentinel-roundtrip", got)
	}
}

func TestSecret_OpenAfterDestroyFails(t *testing.T) {
	if ok, _ := IsMlockAvailable(); !ok {
		t.Setenv("SENTINEL_INSECURE_MEMORY", "true")
	}
	t.Setenv("SENTINEL_TEST_API_KEY", "sk-sentinel-destroy")

	secret, err := LoadSecret("SENTINEL_TEST_API_KEY")
	require.NoError(t, err)

	secret.Destroy()
	_, err = secret.Open()
	assert.Error(t, err)
}

func TestSecret_NilSafe(t *testing.T) {
	var s *Secret
	s.Destroy()

	_, err := s.Open()
	assert.Error(t, err)
}

func TestIsMlockAvailable_Reports(t *testing.T) {
	_, limitKB := IsMlockAvailable()
	assert.True(t, limitKB == -1 || limitKB > 0, "limit should be unlimited or positive, got %d", limitKB)
}
