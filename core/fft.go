package core

import (
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// fftCache keeps one complex FFT plan per length. Plans carry work buffers,
// so each is guarded by its own mutex.
type fftCache struct {
	mu    sync.Mutex
	plans map[int]*fftPlan
}

type fftPlan struct {
	mu  sync.Mutex
	fft *fourier.CmplxFFT
}

var ffts = &fftCache{plans: make(map[int]*fftPlan)}

func (c *fftCache) plan(n int) *fftPlan {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.plans[n]
	if !ok {
		p = &fftPlan{fft: fourier.NewCmplxFFT(n)}
		c.plans[n] = p
	}
	return p
}

// forwardFFT returns the unnormalized forward transform of seq.
func forwardFFT(seq []complex128) []complex128 {
	p := ffts.plan(len(seq))
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fft.Coefficients(nil, seq)
}

// inverseFFT returns the unnormalized inverse transform of coeff. Callers
// divide by the length when they need a true inverse.
func inverseFFT(coeff []complex128) []complex128 {
	p := ffts.plan(len(coeff))
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fft.Sequence(nil, coeff)
}

// fftShift reorders coefficients so that the zero frequency sits at index
// len/2, matching numpy's fftshift.
func fftShift(coeff []complex128) []complex128 {
	p := ffts.plan(len(coeff))
	out := make([]complex128, len(coeff))
	for i := range out {
		out[i] = coeff[p.fft.ShiftIdx(i)]
	}
	return out
}

// shiftedFFT is forwardFFT followed by fftShift.
func shiftedFFT(seq []complex128) []complex128 {
	return fftShift(forwardFFT(seq))
}
