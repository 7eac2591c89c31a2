package native

// Backward execute kernels. Destination gradients are fully overwritten;
// accumulate-style write policies are handled by the caller with a scratch
// buffer.

// maxBackwardFloat32 routes output gradients to the input positions recorded
// in the workspace during the forward pass.
func maxBackwardFloat32(diffSrc, diffDst []float32, ws []int32, g geometry) {
	for i := range diffSrc {
		diffSrc[i] = 0
	}
	numOut := g.n * g.c * g.outH * g.outW
	for i := 0; i < numOut; i++ {
		diffSrc[ws[i]] += diffDst[i]
	}
}

// maxBackwardFloat64 routes output gradients for float64 tensors.
func maxBackwardFloat64(diffSrc, diffDst []float64, ws []int32, g geometry) {
	for i := range diffSrc {
		diffSrc[i] = 0
	}
	numOut := g.n * g.c * g.outH * g.outW
	for i := 0; i < numOut; i++ {
		diffSrc[ws[i]] += diffDst[i]
	}
}

// avgBackwardFloat32 spreads each output gradient uniformly over the input
// elements its window covered, using the same divisor as the forward pass.
func avgBackwardFloat32(diffSrc, diffDst []float32, g geometry, rows, cols []span, includePad bool, kernelArea int) {
	for i := range diffSrc {
		diffSrc[i] = 0
	}

	outIdx := 0
	for n := 0; n < g.n; n++ {
		for c := 0; c < g.c; c++ {
			planeOffset := (n*g.c + c) * g.h * g.w
			plane := diffSrc[planeOffset : planeOffset+g.h*g.w]

			for oh := 0; oh < g.outH; oh++ {
				rs := rows[oh]
				for ow := 0; ow < g.outW; ow++ {
					cs := cols[ow]

					div := kernelArea
					if !includePad {
						div = rs.size() * cs.size()
					}
					grad := diffDst[outIdx] / float32(div)

					for h := rs.start; h < rs.end; h++ {
						rowStart := h * g.w
						for w := cs.start; w < cs.end; w++ {
							plane[rowStart+w] += grad
						}
					}
					outIdx++
				}
			}
		}
	}
}

// avgBackwardFloat64 spreads output gradients for float64 tensors.
func avgBackwardFloat64(diffSrc, diffDst []float64, g geometry, rows, cols []span, includePad bool, kernelArea int) {
	for i := range diffSrc {
		diffSrc[i] = 0
	}

	outIdx := 0
	for n := 0; n < g.n; n++ {
		for c := 0; c < g.c; c++ {
			planeOffset := (n*g.c + c) * g.h * g.w
			plane := diffSrc[planeOffset : planeOffset+g.h*g.w]

			for oh := 0; oh < g.outH; oh++ {
				rs := rows[oh]
				for ow := 0; ow < g.outW; ow++ {
					cs := cols[ow]

					div := kernelArea
					if !includePad {
						div = rs.size() * cs.size()
					}
					grad := diffDst[outIdx] / float64(div)

					for h := rs.start; h < rs.end; h++ {
						rowStart := h * g.w
						for w := cs.start; w < cs.end; w++ {
							plane[rowStart+w] += grad
						}
					}
					outIdx++
				}
			}
		}
	}
}
