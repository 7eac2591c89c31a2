package tensor

// Layout tags the physical arrangement of a tensor's memory.
//
// Compiled execution plans are built against a specific physical layout, so
// two tensors with equal shape and dtype but different layout tags are not
// interchangeable: they must be reordered before being handed to a plan that
// was compiled for the other layout.
type Layout int

const (
	// LayoutCanonical is plain row-major memory in shape order (NCHW for the
	// 4-D tensors the pooling core works with).
	LayoutCanonical Layout = iota

	// LayoutBlocked8c is the channel-blocked layout [N, C/8, H, W, 8] that
	// vectorized engines prefer for 4-D activations. The logical shape stays
	// NCHW; only the physical arrangement differs.
	LayoutBlocked8c
)

// String returns a human-readable layout name.
func (l Layout) String() string {
	switch l {
	case LayoutCanonical:
		return "canonical"
	case LayoutBlocked8c:
		return "nChw8c"
	default:
		return "unknown"
	}
}

const channelBlock = 8

// blockedIndex maps a logical (c, h, w) coordinate within one batch image to
// its flat position in the nChw8c arrangement.
func blockedIndex(c, h, w, H, W int) int {
	cb := c / channelBlock
	ci := c % channelBlock
	return ((cb*H+h)*W+w)*channelBlock + ci
}
