package ratelimiter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrDailyQuotaExceeded is returned once the per-day budget is spent.
var ErrDailyQuotaExceeded = errors.New("daily request quota exceeded")

// RateLimiterInterface は、API呼び出しなどの操作の頻度を制限するインターフェースです。
type RateLimiterInterface interface {
	WaitIfNeeded(ctx context.Context) error
}

// RateLimiterは、1分あたりの呼び出し間隔と1日あたりの上限の両方を守ります。
// 分単位の制限は待機で、日単位の制限はエラーで応えます。
type RateLimiter struct {
	minute *rate.Limiter
	perDay int
	now    func() time.Time

	mu   sync.Mutex
	day  string // UTC日付。変わったらカウントをリセット
	used int
}

var _ RateLimiterInterface = (*RateLimiter)(nil)

// NewRateLimiterは新しいRateLimiterのインスタンスを生成します。
// perMinute <= 0 なら分単位の制限なし、perDay <= 0 なら日単位の制限なし。
func NewRateLimiter(perMinute, perDay int) *RateLimiter {
	lim := rate.NewLimiter(rate.Inf, 1)
	if perMinute > 0 {
		// burst 1: どの60秒の区間でも perMinute 回を超えない
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
	return &RateLimiter{
		minute: lim,
		perDay: perDay,
		now:    time.Now,
	}
}

// WaitIfNeededは日次上限を確認し、分単位の間隔に達していれば必要なだけ待機します。
// 待機中にctxがキャンセルされた場合は ctx.Err() を返し、その呼び出しは日次カウントに含めません。
func (rl *RateLimiter) WaitIfNeeded(ctx context.Context) error {
	if err := rl.take(); err != nil {
		return err
	}

	r := rl.minute.Reserve()
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	slog.Info("rate limit reached, waiting", "delay", delay)

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		rl.refund()
		return ctx.Err()
	}
}

// remaining は本日の残り呼び出し回数を返します。日次上限がなければ -1。
func (rl *RateLimiter) remaining() int {
	if rl.perDay <= 0 {
		return -1
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.rollover()
	return rl.perDay - rl.used
}

func (rl *RateLimiter) take() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.rollover()
	if rl.perDay > 0 && rl.used >= rl.perDay {
		return ErrDailyQuotaExceeded
	}
	rl.used++
	return nil
}

func (rl *RateLimiter) refund() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.used > 0 {
		rl.used--
	}
}

// rollover はUTC日付が変わっていればカウントをリセットします。rl.mu を保持して呼ぶこと。
func (rl *RateLimiter) rollover() {
	today := rl.now().UTC().Format(time.DateOnly)
	if today != rl.day {
		rl.day = today
		rl.used = 0
	}
}
