// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package sync implements the bidirectional clipboard sync engine (spec
// §4.J) and the background TTL sweeper (spec §4.K).
package sync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/appconnect-x/clipcore/clipboard"
	"github.com/appconnect-x/clipcore/clipboardio"
	"github.com/appconnect-x/clipcore/crypto"
	"github.com/appconnect-x/clipcore/envelope"
	"github.com/appconnect-x/clipcore/internal/errs"
	"github.com/appconnect-x/clipcore/internal/logger"
	"github.com/appconnect-x/clipcore/internal/metrics"
	"github.com/appconnect-x/clipcore/types"
)

// Engine holds references to the clipboard store, the active transport,
// a notification surface, the clipboard adapter, and foreground
// detection, per spec §4.J.
type Engine struct {
	Store             clipboard.Store
	Adapter           clipboardio.Adapter
	PrimaryTransport  Transport // nil if not yet connected
	FallbackTransport Transport // nil if not available
	Foreground        func() bool
	LocalKey          []byte // device-bound local AEAD key, dev/test fallback only
	DefaultTTL        time.Duration
	LoopSuppression   time.Duration
	NotifyDebounce    time.Duration
	Now               func() time.Time
	Log               logger.Logger

	mu               sync.Mutex
	lastWrittenHash  string
	lastWrittenTime  time.Time
	debounceTimer    *time.Timer
	debouncedItem    *types.ClipboardItem
	debouncedFrom    Transport
}

// New constructs an Engine over store and adapter with production defaults
// for Foreground, DefaultTTL (24h), LoopSuppression (2s), NotifyDebounce
// (500ms), Now and Log, and registers the engine for local changes.
func New(store clipboard.Store, adapter clipboardio.Adapter) *Engine {
	e := &Engine{
		Store:           store,
		Adapter:         adapter,
		Foreground:      func() bool { return true },
		DefaultTTL:      24 * time.Hour,
		LoopSuppression: 2 * time.Second,
		NotifyDebounce:  500 * time.Millisecond,
		Now:             time.Now,
		Log:             logger.NewDefaultLogger(),
	}
	adapter.OnLocalChange(e.HandleLocalChange)
	return e
}

// activeTransport returns the primary transport if present, else the
// fallback, matching "select transport: current; primary preferred".
func (e *Engine) activeTransport() Transport {
	if e.PrimaryTransport != nil {
		return e.PrimaryTransport
	}
	return e.FallbackTransport
}

// refusesContentOverTransport reports whether contentType must not be
// sent over a transport of the given kind (spec §4.J step 4: the
// byte-stream fallback carries text only, never image payloads). It is
// unreachable through HandleLocalChange today, since the clipboard
// adapter contract is text-only (clipboardio.Adapter.OnLocalChange(func(string))),
// but stays as an explicit guard for callers constructing items
// directly, and for when the adapter grows image support.
func refusesContentOverTransport(contentType types.ContentType, kind types.TransportKind) bool {
	return contentType == types.ContentTypeImage && kind == types.TransportFallback
}

// HandleLocalChange implements the outbound pipeline (spec §4.J).
func (e *Engine) HandleLocalChange(text string) {
	if text == "" {
		return
	}

	hash := crypto.Sha256HexUpper([]byte(text))
	now := e.Now()

	e.mu.Lock()
	suppressed := hash == e.lastWrittenHash && now.Sub(e.lastWrittenTime) < e.LoopSuppression
	e.mu.Unlock()
	if suppressed {
		metrics.OutboundSends.WithLabelValues("dropped_loop").Inc()
		return
	}

	item := &types.ClipboardItem{
		ID:          uuid.NewString(),
		Content:     text,
		ContentType: types.ContentTypeText,
		Timestamp:   now.UnixMilli(),
		TTL:         e.DefaultTTL.Milliseconds(),
		Synced:      false,
		Hash:        hash,
	}

	ctx := context.Background()
	if err := e.Store.Put(ctx, item); err != nil {
		e.Log.Error("failed to persist outbound clipboard item", logger.Error(err))
		return
	}

	transport := e.activeTransport()
	if transport == nil {
		metrics.OutboundSends.WithLabelValues("send_fail").Inc()
		e.reportError(nil, errs.CodeSendFail, "no active transport")
		return
	}

	if refusesContentOverTransport(item.ContentType, transport.Kind()) {
		metrics.OutboundSends.WithLabelValues("unsupported").Inc()
		e.reportError(transport, errs.CodeContentUnsupported, "image content refused over fallback transport")
		return
	}

	e.sendItem(ctx, transport, item)
}

func (e *Engine) sendItem(ctx context.Context, transport Transport, item *types.ClipboardItem) {
	payload, err := json.Marshal(item)
	if err != nil {
		e.Log.Error("failed to serialize clipboard item", logger.Error(err))
		return
	}

	key := transport.SessionKey()
	if key == nil {
		// Dev/test-only fallback; production always has a session key
		// established by the time Connected is reached.
		key = e.LocalKey
	}
	if key == nil {
		metrics.OutboundSends.WithLabelValues("send_fail").Inc()
		e.reportError(transport, errs.CodeSendFail, "no session key available")
		return
	}

	frame, err := envelope.SealText(key, payload)
	if err != nil {
		metrics.OutboundSends.WithLabelValues("send_fail").Inc()
		e.reportError(transport, errs.CodeSendFail, "failed to seal outbound frame")
		return
	}

	if !transport.Send(frame) {
		metrics.OutboundSends.WithLabelValues("send_fail").Inc()
		e.reportError(transport, errs.CodeSendFail, "transport send failed")
		return
	}

	metrics.OutboundSends.WithLabelValues("sent").Inc()
	if err := e.Store.MarkSynced(ctx, item.ID); err != nil {
		e.Log.Error("failed to mark item synced", logger.Error(err), logger.String("itemId", item.ID))
	}
}

// HandleInbound implements the inbound pipeline (spec §4.J), invoked by
// a transport's message listener with a received frame.
func (e *Engine) HandleInbound(source Transport, frame string) {
	ctx := context.Background()

	key := source.SessionKey()
	if key == nil {
		key = e.LocalKey
	}
	if key == nil {
		e.Log.Warn("inbound frame received with no session key available")
		return
	}

	plaintext, err := envelope.OpenText(key, frame)
	if err != nil {
		metrics.InboundReceives.WithLabelValues("decrypt_fail").Inc()
		e.reportError(source, errs.CodeDecryptAuth, "failed to decrypt inbound frame")
		return
	}

	var item types.ClipboardItem
	if jsonErr := json.Unmarshal(plaintext, &item); jsonErr != nil {
		metrics.InboundReceives.WithLabelValues("parse_fail").Inc()
		e.Log.Warn("dropping inbound frame: malformed clipboard item", logger.Error(jsonErr))
		return
	}

	if err := e.Store.Put(ctx, &item); err != nil {
		e.Log.Error("failed to persist inbound clipboard item", logger.Error(err))
		return
	}

	if e.Foreground() {
		e.deliverNow(ctx, &item)
		metrics.InboundReceives.WithLabelValues("delivered_foreground").Inc()
	} else {
		e.scheduleDebouncedDelivery(&item, source)
		metrics.InboundReceives.WithLabelValues("queued_notification").Inc()
	}

	e.reportSyncResult(source, item.ID, true, "applied")
}

func (e *Engine) deliverNow(ctx context.Context, item *types.ClipboardItem) {
	if err := e.Adapter.WriteLocal(ctx, item.Content); err != nil {
		e.Log.Error("failed to write inbound clipboard item locally", logger.Error(err))
		return
	}
	e.armLoopSuppression(item.Content)
}

func (e *Engine) armLoopSuppression(text string) {
	e.mu.Lock()
	e.lastWrittenHash = crypto.Sha256HexUpper([]byte(text))
	e.lastWrittenTime = e.Now()
	e.mu.Unlock()
}

// scheduleDebouncedDelivery debounces background delivery by
// NotifyDebounce; a newer inbound item within the window cancels the
// pending one.
func (e *Engine) scheduleDebouncedDelivery(item *types.ClipboardItem, source Transport) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
	}
	e.debouncedItem = item
	e.debouncedFrom = source
	e.debounceTimer = time.AfterFunc(e.NotifyDebounce, func() {
		e.mu.Lock()
		pending := e.debouncedItem
		e.mu.Unlock()
		if pending == nil {
			return
		}
		ctx := context.Background()
		preview := pending.Content
		if len(preview) > 80 {
			preview = preview[:80]
		}
		e.Adapter.Notify(ctx, preview, func() {
			e.deliverNow(ctx, pending)
		})
	})
}

func (e *Engine) reportError(transport Transport, code errs.Code, message string) {
	e.Log.Warn(message, logger.String("code", string(code)))
	if transport == nil {
		return
	}
	frame, err := envelope.MarshalControlFrame(envelope.ErrorReport{
		Type:      envelope.TypeErrorReport,
		ErrorType: string(code),
		Message:   message,
		Timestamp: e.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	transport.Send(frame)
}

func (e *Engine) reportSyncResult(transport Transport, itemID string, success bool, message string) {
	frame, err := envelope.MarshalControlFrame(envelope.ClipboardSyncResult{
		Type:        envelope.TypeClipboardSyncResult,
		Success:     success,
		ClipboardID: itemID,
		Message:     message,
		Timestamp:   e.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	transport.Send(frame)
}
