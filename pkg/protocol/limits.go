package protocol

import "errors"

// MaxTreeDepth limits the nesting depth of decoded node trees so a hostile
// template cannot overflow the stack.
const MaxTreeDepth = 256

// ErrMaxDepthExceeded is returned when a decoded tree nests too deeply.
var ErrMaxDepthExceeded = errors.New("protocol: maximum nesting depth exceeded")

// depthContext tracks the current decoding depth for recursive structures.
type depthContext struct {
	current int
	max     int
}

func newDepthContext(max int) *depthContext {
	return &depthContext{max: max}
}

// enter increments the depth, failing when the limit would be exceeded.
func (dc *depthContext) enter() error {
	if dc.current >= dc.max {
		return ErrMaxDepthExceeded
	}
	dc.current++
	return nil
}

func (dc *depthContext) leave() {
	dc.current--
}
