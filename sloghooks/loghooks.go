package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/tillworks/tillfront"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
}

var _ tillfront.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("tillfront.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) StaleWriteSkipped(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Debug("tillfront.stale_write_skipped",
		"key", h.redact(storageKey))
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("tillfront.provider_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) RevSnapshotError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tillfront.rev_snapshot_error",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) RevBumpError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tillfront.rev_bump_error",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) InvalidateOutage(key string, bumpErr, delErr error) {
	if h.l == nil {
		return
	}
	h.l.Error("tillfront.invalidate_outage",
		"key", h.redact(key),
		"bump_err", bumpErr,
		"del_err", delErr)
}
