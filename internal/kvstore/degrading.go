package kvstore

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// Degrading wraps a primary store with an in-memory fallback. When the
// primary fails, the wrapper logs the failure once, flips into degraded mode
// and keeps serving reads and writes from the fallback so a scan never dies
// on storage trouble. Data written while degraded is not persisted; the
// Degraded flag lets callers surface that to the user.
//
// Known race, accepted and documented: if the process crashes after a
// fallback conditional write but before the primary recovers, that write is
// lost and the same (date, identity) could be recorded again after restart.
type Degrading struct {
	primary  Store
	fallback Store
	log      *slog.Logger
	degraded atomic.Bool
}

// NewDegrading wraps primary with an in-memory fallback.
func NewDegrading(primary Store, log *slog.Logger) *Degrading {
	if log == nil {
		log = slog.Default()
	}
	return &Degrading{
		primary:  primary,
		fallback: NewMemory(),
		log:      log,
	}
}

// Degraded reports whether the wrapper has switched to the fallback store.
func (d *Degrading) Degraded() bool {
	return d.degraded.Load()
}

// active returns the store to use for the next operation.
func (d *Degrading) active() Store {
	if d.degraded.Load() {
		return d.fallback
	}
	return d.primary
}

// shouldDegrade decides whether an error from the primary warrants the
// fallback switch. Not-found is a normal answer and context expiry belongs
// to the caller's deadline, not to store health.
func (d *Degrading) shouldDegrade(err error) bool {
	if err == nil || d.degraded.Load() {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// degrade flips to the fallback store, logging the transition once.
func (d *Degrading) degrade(op string, err error) {
	if d.degraded.CompareAndSwap(false, true) {
		d.log.Warn("store unavailable, switching to non-persistent fallback",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	}
}

func (d *Degrading) Get(ctx context.Context, key string) (string, error) {
	v, err := d.active().Get(ctx, key)
	if d.shouldDegrade(err) {
		d.degrade("get", err)
		return d.fallback.Get(ctx, key)
	}
	return v, err
}

func (d *Degrading) Set(ctx context.Context, key, value string) error {
	err := d.active().Set(ctx, key, value)
	if d.shouldDegrade(err) {
		d.degrade("set", err)
		return d.fallback.Set(ctx, key, value)
	}
	return err
}

func (d *Degrading) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	created, err := d.active().SetIfAbsent(ctx, key, value)
	if d.shouldDegrade(err) {
		d.degrade("set-if-absent", err)
		return d.fallback.SetIfAbsent(ctx, key, value)
	}
	return created, err
}

func (d *Degrading) Delete(ctx context.Context, key string) error {
	err := d.active().Delete(ctx, key)
	if d.shouldDegrade(err) {
		d.degrade("delete", err)
		return d.fallback.Delete(ctx, key)
	}
	return err
}

func (d *Degrading) List(ctx context.Context, prefix string) (map[string]string, error) {
	out, err := d.active().List(ctx, prefix)
	if d.shouldDegrade(err) {
		d.degrade("list", err)
		return d.fallback.List(ctx, prefix)
	}
	return out, err
}
