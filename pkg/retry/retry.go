// Package retry 为单次远程调用提供有上限的指数退避重试。
package retry

import (
	"context"
	"errors"
	"kkx-toolkit-go/pkg/log"
	"math"
	"net/http"
	"time"
)

const (
	DefaultRetries = 3
	DefaultDelay   = 1000 * time.Millisecond
)

// StatusCoder 由携带 HTTP 状态码的错误实现，用于判断是否重试。
type StatusCoder interface {
	StatusCode() int
}

// SleepFunc 挂起 d，context 取消时提前返回其错误。
type SleepFunc func(ctx context.Context, d time.Duration) error

type options struct {
	retries  int
	delay    time.Duration
	maxDelay time.Duration
	sleep    SleepFunc
}

// Option 配置 Do 的行为。
type Option func(*options)

// WithRetries 设置失败后最多重试的次数。
func WithRetries(n int) Option {
	return func(o *options) { o.retries = n }
}

// WithDelay 设置首次退避时长，之后每次翻倍。
func WithDelay(d time.Duration) Option {
	return func(o *options) { o.delay = d }
}

// WithMaxDelay 限制单次退避的最长时间，0 表示不设上限。
func WithMaxDelay(d time.Duration) Option {
	return func(o *options) { o.maxDelay = d }
}

// WithSleep 替换两次尝试之间的等待函数，测试中用来记录退避时长。
func WithSleep(s SleepFunc) Option {
	return func(o *options) { o.sleep = s }
}

// IsRetryable 只有限流 (429) 与服务端错误 (5xx) 才值得重试。
func IsRetryable(err error) bool {
	var sc StatusCoder
	if !errors.As(err, &sc) {
		return false
	}
	code := sc.StatusCode()
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// Do 调用 op，遇到可重试错误时按 delay, 2*delay, 4*delay ... 退避后重试。
// 重试耗尽或遇到不可重试错误时原样返回最后一次的错误。
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	o := options{
		retries: DefaultRetries,
		delay:   DefaultDelay,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return attempt(ctx, op, o.retries, o.delay, o)
}

func attempt[T any](ctx context.Context, op func(ctx context.Context) (T, error), retries int, delay time.Duration, o options) (T, error) {
	result, err := op(ctx)
	if err == nil {
		return result, nil
	}
	if retries <= 0 || !IsRetryable(err) {
		return result, err
	}

	wait := delay
	if o.maxDelay > 0 && wait > o.maxDelay {
		wait = o.maxDelay
	}
	log.Warnw("retrying remote call", "wait", wait.String(), "retriesLeft", retries, "error", err)
	if sleepErr := o.sleep(ctx, wait); sleepErr != nil {
		return result, err
	}
	return attempt(ctx, op, retries-1, nextDelay(delay, o.maxDelay), o)
}

// nextDelay 把退避时长翻倍，到达上限或 time.Duration 的最大值后不再增长。
func nextDelay(delay, maxDelay time.Duration) time.Duration {
	if maxDelay > 0 && delay >= maxDelay {
		return maxDelay
	}
	if delay > math.MaxInt64/2 {
		return math.MaxInt64
	}
	return delay * 2
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
