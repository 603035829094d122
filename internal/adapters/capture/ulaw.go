package capture

const (
	ulawBias = 0x84
	ulawClip = 32635
)

// linearToULaw is the G.711 µ-law compander.
func linearToULaw(sample int16) byte {
	s := int(sample)
	sign := 0
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > ulawClip {
		s = ulawClip
	}
	s += ulawBias

	exponent := 7
	for mask := 0x4000; s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := (s >> (exponent + 3)) & 0x0F
	return ^byte(sign | exponent<<4 | mantissa)
}

func encodeULaw(dst []byte, pcm []int16) []byte {
	dst = dst[:0]
	for _, s := range pcm {
		dst = append(dst, linearToULaw(s))
	}
	return dst
}
