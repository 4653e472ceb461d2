// Copyright (c) 2019 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package controller

import (
	"time"

	"github.com/pkg/errors"
)

const (
	// by default, queues are flushed every 100ms
	defaultFlushInterval = 100 * time.Millisecond

	// by default, a queue with 100 or more operations is flushed immediately
	defaultMaxBatchSize = 100

	// by default, conflicting batch is retried up to 5 times
	defaultRetryCeiling = 5

	// by default, retry is executed 10ms after the conflict
	defaultDelayRetry = 10 * time.Millisecond

	// by default, retry delay grows exponentially with each failed attempt
	defaultEnableExpBackoffRetry = true

	defaultRecordQueueCapacity  = 10000
	defaultCounterQueueCapacity = 10000

	// by default, the last 1000 batches are kept in the history
	defaultHistoryLength = 1000

	// upper bound for exponential back-off
	maxDelayRetry = time.Second

	// by default, a batch requeued due to a store failure is retried after 100ms
	defaultOutageRetryDelay = 100 * time.Millisecond

	// upper bound for the retry delay while the store keeps failing
	maxOutageRetryDelay = 5 * time.Second
)

// Config holds the Controller configuration.
type Config struct {
	// flushing
	FlushInterval time.Duration `json:"flush-interval"`
	MaxBatchSize  int           `json:"max-batch-size"`

	// retry
	RetryCeiling          int           `json:"retry-ceiling"`
	DelayRetry            time.Duration `json:"delay-retry"`
	EnableExpBackoffRetry bool          `json:"enable-exp-backoff-retry"`

	// store failures
	OutageRetryDelay time.Duration `json:"outage-retry-delay"`

	// queues
	RecordQueueCapacity  int `json:"record-queue-capacity"`
	CounterQueueCapacity int `json:"counter-queue-capacity"`

	// history & banners
	HistoryLength  int  `json:"history-length"`
	DisableBanners bool `json:"disable-banners"`
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		FlushInterval:         defaultFlushInterval,
		MaxBatchSize:          defaultMaxBatchSize,
		RetryCeiling:          defaultRetryCeiling,
		DelayRetry:            defaultDelayRetry,
		EnableExpBackoffRetry: defaultEnableExpBackoffRetry,
		OutageRetryDelay:      defaultOutageRetryDelay,
		RecordQueueCapacity:   defaultRecordQueueCapacity,
		CounterQueueCapacity:  defaultCounterQueueCapacity,
		HistoryLength:         defaultHistoryLength,
	}
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	switch {
	case c.FlushInterval <= 0:
		return errors.Errorf("invalid flush interval: %v", c.FlushInterval)
	case c.MaxBatchSize < 1:
		return errors.Errorf("invalid max batch size: %d", c.MaxBatchSize)
	case c.RetryCeiling < 0:
		return errors.Errorf("invalid retry ceiling: %d", c.RetryCeiling)
	case c.DelayRetry < 0:
		return errors.Errorf("invalid retry delay: %v", c.DelayRetry)
	case c.OutageRetryDelay <= 0:
		return errors.Errorf("invalid outage retry delay: %v", c.OutageRetryDelay)
	case c.RecordQueueCapacity < 1 || c.CounterQueueCapacity < 1:
		return errors.Errorf("invalid queue capacity: records=%d, counters=%d",
			c.RecordQueueCapacity, c.CounterQueueCapacity)
	case c.HistoryLength < 0:
		return errors.Errorf("invalid history length: %d", c.HistoryLength)
	}
	return nil
}

// retryDelay returns how long to wait before the given retry (1-based).
func (c *Config) retryDelay(retry int) time.Duration {
	delay := c.DelayRetry
	if !c.EnableExpBackoffRetry {
		return delay
	}
	for i := 1; i < retry && delay < maxDelayRetry; i++ {
		delay *= 2
	}
	if delay > maxDelayRetry {
		delay = maxDelayRetry
	}
	return delay
}

// outageDelay returns how long to wait before committing a requeued batch
// again, given the previous delay (0 after the first failure).
func (c *Config) outageDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return c.OutageRetryDelay
	}
	if !c.EnableExpBackoffRetry {
		return prev
	}
	delay := prev * 2
	if delay > maxOutageRetryDelay {
		delay = maxOutageRetryDelay
	}
	if delay < prev {
		delay = prev
	}
	return delay
}
