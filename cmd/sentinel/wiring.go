// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/AleutianAI/AleutianSentinel/pkg/logging"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/config"
)

// configFilePath resolves the --config flag, falling back to the
// conventional location.
func configFilePath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

// loadConfig loads the validated configuration from the resolved path.
func loadConfig() (*config.Config, error) {
	path, err := configFilePath()
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// newLogger builds the CLI logger: stderr plus a daily file under
// ~/.sentinel/logs. Verbose service logs stay out of the way of styled
// output, so one-shot commands pass LevelWarn. Callers own Close.
func newLogger(level logging.Level) *logging.Logger {
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  "~/.sentinel/logs",
		Service: "cli",
	})
}
