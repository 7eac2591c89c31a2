package native

// Forward execute kernels. The window spans are precomputed at compile time
// and already clamped to the real input, so these loops never see padding.

// maxForwardFloat32 performs max pooling for float32 tensors.
// When ws is non-nil it records, per output element, the flat input index of
// the maximum (the workspace consumed by the backward pass).
func maxForwardFloat32(dst, src []float32, ws []int32, g geometry, rows, cols []span) {
	outIdx := 0
	for n := 0; n < g.n; n++ {
		for c := 0; c < g.c; c++ {
			// Pre-slice channel plane: eliminates (n*C+c)*H*W bounds check
			planeOffset := (n*g.c + c) * g.h * g.w
			plane := src[planeOffset : planeOffset+g.h*g.w]

			for oh := 0; oh < g.outH; oh++ {
				rs := rows[oh]
				for ow := 0; ow < g.outW; ow++ {
					cs := cols[ow]

					maxVal := float32(-1e38) // Negative infinity approximation
					maxPos := rs.start*g.w + cs.start

					for h := rs.start; h < rs.end; h++ {
						rowStart := h * g.w
						for w := cs.start; w < cs.end; w++ {
							val := plane[rowStart+w]
							if val > maxVal {
								maxVal = val
								maxPos = rowStart + w
							}
						}
					}

					dst[outIdx] = maxVal
					if ws != nil {
						ws[outIdx] = int32(planeOffset + maxPos)
					}
					outIdx++
				}
			}
		}
	}
}

// maxForwardFloat64 performs max pooling for float64 tensors.
func maxForwardFloat64(dst, src []float64, ws []int32, g geometry, rows, cols []span) {
	outIdx := 0
	for n := 0; n < g.n; n++ {
		for c := 0; c < g.c; c++ {
			planeOffset := (n*g.c + c) * g.h * g.w
			plane := src[planeOffset : planeOffset+g.h*g.w]

			for oh := 0; oh < g.outH; oh++ {
				rs := rows[oh]
				for ow := 0; ow < g.outW; ow++ {
					cs := cols[ow]

					maxVal := float64(-1e308)
					maxPos := rs.start*g.w + cs.start

					for h := rs.start; h < rs.end; h++ {
						rowStart := h * g.w
						for w := cs.start; w < cs.end; w++ {
							val := plane[rowStart+w]
							if val > maxVal {
								maxVal = val
								maxPos = rowStart + w
							}
						}
					}

					dst[outIdx] = maxVal
					if ws != nil {
						ws[outIdx] = int32(planeOffset + maxPos)
					}
					outIdx++
				}
			}
		}
	}
}

// avgForwardFloat32 performs average pooling for float32 tensors.
// includePad divides by the full kernel area (padded positions count as
// zeros); otherwise the divisor is the number of real elements covered.
func avgForwardFloat32(dst, src []float32, g geometry, rows, cols []span, includePad bool, kernelArea int) {
	outIdx := 0
	for n := 0; n < g.n; n++ {
		for c := 0; c < g.c; c++ {
			planeOffset := (n*g.c + c) * g.h * g.w
			plane := src[planeOffset : planeOffset+g.h*g.w]

			for oh := 0; oh < g.outH; oh++ {
				rs := rows[oh]
				for ow := 0; ow < g.outW; ow++ {
					cs := cols[ow]

					var sum float32
					for h := rs.start; h < rs.end; h++ {
						rowStart := h * g.w
						for w := cs.start; w < cs.end; w++ {
							sum += plane[rowStart+w]
						}
					}

					div := kernelArea
					if !includePad {
						div = rs.size() * cs.size()
					}
					dst[outIdx] = sum / float32(div)
					outIdx++
				}
			}
		}
	}
}

// avgForwardFloat64 performs average pooling for float64 tensors.
func avgForwardFloat64(dst, src []float64, g geometry, rows, cols []span, includePad bool, kernelArea int) {
	outIdx := 0
	for n := 0; n < g.n; n++ {
		for c := 0; c < g.c; c++ {
			planeOffset := (n*g.c + c) * g.h * g.w
			plane := src[planeOffset : planeOffset+g.h*g.w]

			for oh := 0; oh < g.outH; oh++ {
				rs := rows[oh]
				for ow := 0; ow < g.outW; ow++ {
					cs := cols[ow]

					var sum float64
					for h := rs.start; h < rs.end; h++ {
						rowStart := h * g.w
						for w := cs.start; w < cs.end; w++ {
							sum += plane[rowStart+w]
						}
					}

					div := kernelArea
					if !includePad {
						div = rs.size() * cs.size()
					}
					dst[outIdx] = sum / float64(div)
					outIdx++
				}
			}
		}
	}
}
