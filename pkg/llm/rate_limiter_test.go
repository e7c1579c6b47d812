// Copyright 2026 AdPilot
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewRateLimiter(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.Logger = zaptest.NewLogger(t)

	rl := NewRateLimiter(config)
	require.NotNil(t, rl)

	assert.Equal(t, config.RequestsPerSecond, rl.refillRate)
	assert.Equal(t, float64(config.BurstCapacity), rl.maxTokens)
	assert.Equal(t, float64(config.BurstCapacity), rl.tokens)
}

func TestRateLimiter_Do_Success(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.Logger = zaptest.NewLogger(t)
	config.RequestsPerSecond = 100 // Fast for testing

	rl := NewRateLimiter(config)

	callCount := 0
	result, err := rl.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
		callCount++
		return "success", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 1, callCount)
}

func TestRateLimiter_Do_ThrottlingRetry(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.Logger = zaptest.NewLogger(t)
	config.RequestsPerSecond = 100
	config.MaxRetries = 3
	config.RetryBackoff = 5 * time.Millisecond // Fast for testing

	rl := NewRateLimiter(config)

	callCount := 0
	result, err := rl.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
		callCount++
		if callCount < 3 {
			return nil, errors.New("ThrottlingException: rate exceeded")
		}
		return "recovered", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, 3, callCount)
}

func TestRateLimiter_Do_RetriesExhausted(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.Logger = zaptest.NewLogger(t)
	config.RequestsPerSecond = 100
	config.MaxRetries = 2
	config.RetryBackoff = time.Millisecond

	rl := NewRateLimiter(config)

	callCount := 0
	_, err := rl.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
		callCount++
		return nil, errors.New("429 Too Many Requests")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttling")
	assert.Equal(t, 3, callCount, "initial attempt plus MaxRetries")
}

func TestRateLimiter_Do_NonThrottlingErrorNotRetried(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.Logger = zaptest.NewLogger(t)
	config.RequestsPerSecond = 100

	rl := NewRateLimiter(config)

	boom := errors.New("invalid request")
	callCount := 0
	_, err := rl.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
		callCount++
		return nil, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, callCount)
}

func TestRateLimiter_Do_DisabledBypassesBucket(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Enabled: false})

	for i := 0; i < 20; i++ {
		_, err := rl.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
			return nil, nil
		})
		require.NoError(t, err)
	}
}

func TestRateLimiter_TokenBucketRefill(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.Logger = zaptest.NewLogger(t)
	config.BurstCapacity = 2
	config.RequestsPerSecond = 50

	rl := NewRateLimiter(config)

	// Drain the burst.
	assert.True(t, rl.acquireToken())
	assert.True(t, rl.acquireToken())
	assert.False(t, rl.acquireToken())

	// At 50 rps a token is back within 20ms.
	time.Sleep(50 * time.Millisecond)
	assert.True(t, rl.acquireToken())
}

func TestRateLimiter_WaitHonorsContext(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.Logger = zaptest.NewLogger(t)
	config.BurstCapacity = 1
	config.RequestsPerSecond = 0.001 // Effectively never refills

	rl := NewRateLimiter(config)
	require.True(t, rl.acquireToken())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := rl.Do(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsThrottlingError(t *testing.T) {
	assert.False(t, isThrottlingError(nil))
	assert.False(t, isThrottlingError(errors.New("connection refused")))
	assert.True(t, isThrottlingError(errors.New("429 Too Many Requests")))
	assert.True(t, isThrottlingError(errors.New("ThrottlingException")))
	assert.True(t, isThrottlingError(errors.New("provider rate limit hit")))
}
