package dsp

import (
	"fmt"
	"math"
	"math/bits"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// DFT computes an exact n-point discrete Fourier transform. Power-of-two
// lengths run directly on an FFT plan; other lengths (the 6000 and 16000
// sample analysis windows, for instance) go through Bluestein's chirp-z
// identity on a power-of-two plan of at least 2n-1 points.
type DFT struct {
	n    int
	plan *algofft.Plan[complex128]

	// chirp-z state, nil for power-of-two n
	m      int
	chirp  []complex128 // exp(-i*pi*k^2/n)
	kernel []complex128 // FFT of the conjugate chirp, wrapped
	in     []complex128
	spec   []complex128
}

// NewDFT prepares a transform of length n.
func NewDFT(n int) (*DFT, error) {
	if n < 1 {
		return nil, fmt.Errorf("dsp: dft length %d must be positive", n)
	}
	d := &DFT{n: n}

	if isPow2(n) {
		plan, err := algofft.NewPlan64(n)
		if err != nil {
			return nil, fmt.Errorf("dsp: fft plan %d: %w", n, err)
		}
		d.plan = plan
		return d, nil
	}

	d.m = nextPow2(2*n - 1)
	plan, err := algofft.NewPlan64(d.m)
	if err != nil {
		return nil, fmt.Errorf("dsp: fft plan %d: %w", d.m, err)
	}
	d.plan = plan

	d.chirp = make([]complex128, n)
	twoN := uint64(2 * n)
	for k := 0; k < n; k++ {
		// k^2 mod 2n keeps the angle small for large k.
		kk := uint64(k) * uint64(k) % twoN
		angle := -math.Pi * float64(kk) / float64(n)
		d.chirp[k] = complex(math.Cos(angle), math.Sin(angle))
	}

	b := make([]complex128, d.m)
	b[0] = conj(d.chirp[0])
	for k := 1; k < n; k++ {
		c := conj(d.chirp[k])
		b[k] = c
		b[d.m-k] = c
	}
	d.kernel = make([]complex128, d.m)
	if err := d.plan.Forward(d.kernel, b); err != nil {
		return nil, fmt.Errorf("dsp: chirp kernel: %w", err)
	}
	d.in = make([]complex128, d.m)
	d.spec = make([]complex128, d.m)
	return d, nil
}

// Len returns the transform length.
func (d *DFT) Len() int { return d.n }

// Transform writes the DFT of src into dst. Both must have length Len.
func (d *DFT) Transform(dst, src []complex128) error {
	if len(dst) != d.n || len(src) != d.n {
		return fmt.Errorf("dsp: dft buffers must have length %d", d.n)
	}
	if d.chirp == nil {
		return d.plan.Forward(dst, src)
	}

	a, spec := d.in, d.spec
	for k := 0; k < d.n; k++ {
		a[k] = src[k] * d.chirp[k]
	}
	for k := d.n; k < d.m; k++ {
		a[k] = 0
	}
	if err := d.plan.Forward(spec, a); err != nil {
		return err
	}
	for k := range spec {
		spec[k] *= d.kernel[k]
	}
	if err := d.plan.Inverse(a, spec); err != nil {
		return err
	}
	for k := 0; k < d.n; k++ {
		dst[k] = a[k] * d.chirp[k]
	}
	return nil
}

// BinFrequency maps DFT index k of an n-point transform to its signed
// frequency in Hz, folding the upper half onto negative frequencies.
func BinFrequency(k, n int, sampleRate float64) float64 {
	if k >= (n+1)/2 {
		k -= n
	}
	return float64(k) * sampleRate / float64(n)
}

func conj(c complex128) complex128 {
	return complex(real(c), -imag(c))
}

func isPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
