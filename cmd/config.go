/*
 *  config.go
 *  cmd
 *
 *  Created by Haibao Tang on 03/17/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	logging "github.com/op/go-logging"
	"github.com/tanghaibao/gax"
)

// Environment variables read by LoadConfig
const (
	EnvThreads  = "GAX_THREADS"
	EnvFailFast = "GAX_FAIL_FAST"
	EnvDeadline = "GAX_DEADLINE"
	EnvLogLevel = "GAX_LOG_LEVEL"
)

// Config holds the settings shared by all conversions
type Config struct {
	Threads  int
	FailFast bool
	Deadline time.Duration // zero means no deadline
	LogLevel string
}

// DefaultConfig uses one worker per CPU and logs at INFO
func DefaultConfig() *Config {
	return &Config{Threads: runtime.NumCPU(), LogLevel: "INFO"}
}

// LoadConfig reads envfile (or `.env` when envfile is empty and the file
// exists) into the environment, then the GAX_* variables over the defaults
func LoadConfig(envfile string) (*Config, error) {
	if envfile != "" {
		if err := godotenv.Load(envfile); err != nil {
			return nil, fmt.Errorf("load `%s`: %w", envfile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	if v, ok := os.LookupEnv(EnvThreads); ok {
		threads, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s `%s`: %w", EnvThreads, v, err)
		}
		cfg.Threads = threads
	}
	if v, ok := os.LookupEnv(EnvFailFast); ok {
		failFast, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s `%s`: %w", EnvFailFast, v, err)
		}
		cfg.FailFast = failFast
	}
	if v, ok := os.LookupEnv(EnvDeadline); ok {
		deadline, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s `%s`: %w", EnvDeadline, v, err)
		}
		cfg.Deadline = deadline
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		cfg.LogLevel = v
	}
	return cfg, nil
}

// Validate rejects settings no run can use
func (c *Config) Validate() error {
	if c.Threads <= 0 {
		return fmt.Errorf("threads must be positive, got %d", c.Threads)
	}
	if c.Deadline < 0 {
		return fmt.Errorf("deadline must not be negative, got %s", c.Deadline)
	}
	if _, err := logging.LogLevel(strings.ToUpper(c.LogLevel)); err != nil {
		return fmt.Errorf("log level `%s`: %w", c.LogLevel, err)
	}
	return nil
}

// Pipeline returns the worker settings
func (c *Config) Pipeline() gax.Pipeline {
	return gax.Pipeline{Workers: c.Threads, FailFast: c.FailFast}
}

// Context applies the deadline, if any
func (c *Config) Context() (context.Context, context.CancelFunc) {
	if c.Deadline > 0 {
		return context.WithTimeout(context.Background(), c.Deadline)
	}
	return context.WithCancel(context.Background())
}
