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

// Package clipboardio is the platform clipboard/notification adapter
// contract (spec §4.L, §9 Design Notes). A concrete platform
// implementation (OS clipboard hooks, companion-device pairing UI,
// system notifications) is out of scope; this package specifies only
// the four-callback interface and provides test/dev scaffolding.
package clipboardio

import "context"

// AssociateResult is the outcome of a host-OS companion-device
// association attempt.
type AssociateResult struct {
	Accepted bool
	Message  string
}

// DeviceInfo is the minimal identity surfaced to a platform's
// companion-device association flow.
type DeviceInfo struct {
	ID   string
	Name string
}

// Adapter is the platform clipboard/notification contract: four
// callbacks. on_local_change fires after every user-initiated local
// clipboard change; write_local performs a programmatic clipboard write;
// associate runs the host-OS companion-device flow; notify surfaces a
// background-delivery "Copy" action.
type Adapter interface {
	// OnLocalChange registers fn to be invoked with the new clipboard
	// text after every user-initiated local clipboard change.
	OnLocalChange(fn func(text string))

	// WriteLocal writes text to the local clipboard.
	WriteLocal(ctx context.Context, text string) error

	// Associate runs the host-OS companion-device association flow, if
	// the platform exposes one.
	Associate(ctx context.Context, device DeviceInfo) (AssociateResult, error)

	// Notify surfaces a notification containing preview with a "Copy"
	// action; copyAction is invoked if the user triggers it.
	Notify(ctx context.Context, preview string, copyAction func()) error
}

// NoopAdapter is a no-op Adapter for tests that never drive local
// clipboard events.
type NoopAdapter struct {
	changeHandler func(string)
}

func (n *NoopAdapter) OnLocalChange(fn func(text string)) { n.changeHandler = fn }

func (n *NoopAdapter) WriteLocal(ctx context.Context, text string) error { return nil }

func (n *NoopAdapter) Associate(ctx context.Context, device DeviceInfo) (AssociateResult, error) {
	return AssociateResult{Accepted: true}, nil
}

func (n *NoopAdapter) Notify(ctx context.Context, preview string, copyAction func()) error {
	return nil
}

// ChannelAdapter wraps a Go channel as a fake "local clipboard" for
// integration tests driving the sync engine without a real OS clipboard.
// Writes from WriteLocal land on Written; sending to Changes simulates a
// user-initiated local clipboard change.
type ChannelAdapter struct {
	Changes chan string
	Written chan string

	changeHandler func(string)
	done          chan struct{}
}

// NewChannelAdapter constructs a ChannelAdapter and starts forwarding
// Changes into the registered on-local-change handler.
func NewChannelAdapter() *ChannelAdapter {
	a := &ChannelAdapter{
		Changes: make(chan string, 16),
		Written: make(chan string, 16),
		done:    make(chan struct{}),
	}
	go a.pump()
	return a
}

func (a *ChannelAdapter) pump() {
	for {
		select {
		case text := <-a.Changes:
			if a.changeHandler != nil {
				a.changeHandler(text)
			}
		case <-a.done:
			return
		}
	}
}

func (a *ChannelAdapter) OnLocalChange(fn func(text string)) { a.changeHandler = fn }

func (a *ChannelAdapter) WriteLocal(ctx context.Context, text string) error {
	select {
	case a.Written <- text:
	default:
	}
	return nil
}

func (a *ChannelAdapter) Associate(ctx context.Context, device DeviceInfo) (AssociateResult, error) {
	return AssociateResult{Accepted: true}, nil
}

func (a *ChannelAdapter) Notify(ctx context.Context, preview string, copyAction func()) error {
	if copyAction != nil {
		copyAction()
	}
	return nil
}

// Close stops the adapter's internal goroutine.
func (a *ChannelAdapter) Close() { close(a.done) }
