package engine

// recalculateSampleRates derives each channel's sample rate and
// inter-sample delay from the average clock interval.
//
// The rate scales inversely with the channel's division (coarser
// divisions stretch a segment over more clock edges, so fewer samples
// per second suffice) and inversely with how slow the clock is (a slow
// clock leaves room to drop the rate and save buffer space), and never
// exceeds MaxSampleRate, which bounds buffer memory. Called whenever the
// average clock interval changes materially or a division changes.
func (e *Engine) recalculateSampleRates() {
	for _, ch := range e.channels {
		rate := int(2 * (MaxSampleRate / float64(ch.Division)) * (MaxClockMs / e.averageMs))
		if rate > MaxSampleRate {
			rate = MaxSampleRate
		}
		if rate < 1 {
			rate = 1
		}
		ch.sampleRate = rate
		ch.sampleDelayMs = int64(1000 / rate)
	}
}

// targetSampleCount computes how many samples the next segment needs to
// span one division interval at the channel's sample rate, corrected by
// the accumulated overrun offset and clamped to the buffer capacity.
func (e *Engine) targetSampleCount(ch *Channel) int {
	n := int((e.averageMs/1000)*float64(ch.Division)*float64(ch.sampleRate)) - ch.sampleOffset
	if n > BufferCapacity {
		n = BufferCapacity
	}
	return n
}
