package imagef

// Downscale reduces the image to targetW x targetH by box averaging.
// Each destination pixel averages the source pixels its footprint covers.
// Returns the source unchanged when the target is not smaller.
func (m *Image) Downscale(targetW, targetH int) *Image {
	if targetW <= 0 || targetH <= 0 || (targetW >= m.Width && targetH >= m.Height) {
		return m
	}

	out := &Image{
		Pix:      make([]float32, targetW*targetH*m.Channels),
		Width:    targetW,
		Height:   targetH,
		Channels: m.Channels,
	}

	xRatio := float64(m.Width) / float64(targetW)
	yRatio := float64(m.Height) / float64(targetH)
	ch := m.Channels

	var acc [4]float64
	for dy := 0; dy < targetH; dy++ {
		sy0 := int(float64(dy) * yRatio)
		sy1 := int(float64(dy+1) * yRatio)
		if sy1 <= sy0 {
			sy1 = sy0 + 1
		}
		if sy1 > m.Height {
			sy1 = m.Height
		}
		for dx := 0; dx < targetW; dx++ {
			sx0 := int(float64(dx) * xRatio)
			sx1 := int(float64(dx+1) * xRatio)
			if sx1 <= sx0 {
				sx1 = sx0 + 1
			}
			if sx1 > m.Width {
				sx1 = m.Width
			}

			for c := 0; c < ch; c++ {
				acc[c] = 0
			}
			for sy := sy0; sy < sy1; sy++ {
				base := (sy*m.Width + sx0) * ch
				for sx := sx0; sx < sx1; sx++ {
					for c := 0; c < ch; c++ {
						acc[c] += float64(m.Pix[base+c])
					}
					base += ch
				}
			}

			n := float64((sy1 - sy0) * (sx1 - sx0))
			di := (dy*targetW + dx) * ch
			for c := 0; c < ch; c++ {
				out.Pix[di+c] = float32(acc[c] / n)
			}
		}
	}
	return out
}
