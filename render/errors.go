// SPDX-License-Identifier: EPL-2.0

package render

import "errors"

var (
	ErrNoDestination   = errors.New("graph description has no destination node")
	ErrGraphCycle      = errors.New("graph description contains a cycle")
	ErrUnknownNodeKind = errors.New("graph description contains an unknown node kind")
)
