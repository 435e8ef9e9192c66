// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file keeps API keys in mlocked memory between uses. Keys are
// sealed into a memguard enclave at load time and opened only for the
// moment an SDK client is constructed.

package ai

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/sys/unix"
)

// MinMlockLimitKB is the minimum mlock limit required in kilobytes.
// Key enclaves are small; one page per key plus guard pages.
const MinMlockLimitKB = 64

var (
	memguardInitOnce    sync.Once
	mlockSufficient     bool
	currentMlockLimitKB int64
)

// Secret holds one API key. In secure mode the key lives in a memguard
// enclave and is decrypted only inside Open. If mlock limits are
// insufficient and SENTINEL_INSECURE_MEMORY=true, the key is held in
// ordinary memory with a logged warning instead.
//
// # Thread Safety
//
// Safe for concurrent use after construction.
type Secret struct {
	name    string
	enclave *memguard.Enclave
	plain   []byte
}

// LoadSecret reads the named environment variable and seals its value.
//
// # Description
//
// Initializes memguard on first use and checks the mlock resource
// limit. If the limit is too low, the load fails unless
// SENTINEL_INSECURE_MEMORY=true is set, in which case an insecure
// in-process copy is used.
//
// # Inputs
//
//   - env: Environment variable name holding the key
//
// # Outputs
//
//   - *Secret: Sealed key ready for Open
//   - error: Non-nil if the variable is unset or secure memory is
//     unavailable without the insecure override
func LoadSecret(env string) (*Secret, error) {
	value := os.Getenv(env)
	if value == "" {
		return nil, fmt.Errorf("environment variable %s not set", env)
	}
	return sealSecret(env, []byte(value))
}

func sealSecret(name string, value []byte) (*Secret, error) {
	initMemguard()

	if !mlockSufficient {
		if os.Getenv("SENTINEL_INSECURE_MEMORY") != "true" {
			return nil, fmt.Errorf(
				"mlock limit insufficient for secure key storage: have %d KB, need %d KB. "+
					"Raise the limit or set SENTINEL_INSECURE_MEMORY=true",
				currentMlockLimitKB, MinMlockLimitKB,
			)
		}
		slog.Warn("SECURITY: holding key in insecure memory",
			"secret", name,
			"current_limit_kb", currentMlockLimitKB,
			"required_kb", MinMlockLimitKB,
			"env_override", "SENTINEL_INSECURE_MEMORY=true",
		)
		return &Secret{name: name, plain: value}, nil
	}

	// NewEnclave wipes the source slice after sealing.
	return &Secret{name: name, enclave: memguard.NewEnclave(value)}, nil
}

// Open returns a copy of the key. Secure secrets decrypt the enclave
// into a locked buffer, copy the value out, and destroy the buffer.
func (s *Secret) Open() (string, error) {
	if s == nil {
		return "", fmt.Errorf("no secret loaded")
	}
	if s.enclave == nil {
		if s.plain == nil {
			return "", fmt.Errorf("secret %s already destroyed", s.name)
		}
		return string(s.plain), nil
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open enclave for %s: %w", s.name, err)
	}
	defer buf.Destroy()
	return buf.String(), nil
}

// Destroy wipes the key material. Idempotent.
func (s *Secret) Destroy() {
	if s == nil {
		return
	}
	for i := range s.plain {
		s.plain[i] = 0
	}
	s.plain = nil
	s.enclave = nil
}

// PurgeSecrets wipes all memguard-allocated memory. Call during
// graceful shutdown.
func PurgeSecrets() {
	memguard.Purge()
	slog.Info("purged secure memory")
}

// IsMlockAvailable reports whether secure key storage is available and
// the current mlock limit in KB (-1 if unlimited).
func IsMlockAvailable() (bool, int64) {
	initMemguard()
	return mlockSufficient, currentMlockLimitKB
}

func initMemguard() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockSufficient, currentMlockLimitKB = checkMlockLimit()
		if mlockSufficient {
			slog.Info("secure memory initialized",
				"mlock_limit_kb", currentMlockLimitKB,
				"required_kb", MinMlockLimitKB,
			)
		} else {
			slog.Error("mlock limit insufficient for secure memory",
				"current_limit_kb", currentMlockLimitKB,
				"required_kb", MinMlockLimitKB,
				"help", "raise RLIMIT_MEMLOCK or set SENTINEL_INSECURE_MEMORY=true",
			)
		}
	})
}

// checkMlockLimit queries the kernel for the mlock resource limit.
// Returns (sufficient, limit in KB); limit is -1 when unlimited.
func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("could not determine mlock limit", "error", err)
		return true, -1
	}
	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}
	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= MinMlockLimitKB, limitKB
}
