// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cld80211

import "errors"

var (
	// ErrInit is wrapped by every error returned from Dial and New.
	ErrInit = errors.New("cld80211: initialization failed")

	// ErrClosed is returned by operations on a closed Context.
	ErrClosed = errors.New("cld80211: context closed")

	// ErrBusy is returned when a receive is already active on the Context,
	// or when Close is called while one is.
	ErrBusy = errors.New("cld80211: receive already in progress")

	// ErrMessageSent is returned when a Message is sent a second time.
	ErrMessageSent = errors.New("cld80211: message already sent")

	// ErrUnknownGroup is returned for a multicast group name the family does
	// not register.
	ErrUnknownGroup = errors.New("cld80211: unknown multicast group")

	// ErrInvalidAttr is returned when an Attrs holds an id that cannot be
	// nested inside the vendor data attribute.
	ErrInvalidAttr = errors.New("cld80211: invalid attribute")
)
