package visual

import (
	"image"
	"math"
)

// Fixed transform parameters. Changing these changes every cached artifact,
// so they are compile-time constants rather than configuration.
const (
	gaussianSigma  = 2.0
	gaussianRadius = 4
)

// depthApproximation produces the depth-stand-in map: Gaussian blur followed
// by histogram normalization. This deliberately approximates monocular depth
// estimation with smoothed intensity; a real depth model is out of scope.
func depthApproximation(gray *image.Gray) *image.Gray {
	blurred := gaussianBlur(planeFromGray(gray), gray.Rect.Dx(), gray.Rect.Dy())
	return grayFromPlane(normalizePlane(blurred), gray.Rect.Dx(), gray.Rect.Dy())
}

// edgeMap highlights boundaries with a discrete Laplacian, an isotropic
// second-derivative kernel, followed by normalization of the magnitudes.
func edgeMap(gray *image.Gray) *image.Gray {
	kernel := [3][3]float64{
		{0, 1, 0},
		{1, -4, 1},
		{0, 1, 0},
	}
	out := convolve3x3(planeFromGray(gray), gray.Rect.Dx(), gray.Rect.Dy(), kernel)
	absPlane(out)
	return grayFromPlane(normalizePlane(out), gray.Rect.Dx(), gray.Rect.Dy())
}

// gradientMap highlights slope/momentum with a horizontal Sobel kernel, a
// directional first derivative, followed by normalization.
func gradientMap(gray *image.Gray) *image.Gray {
	kernel := [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	out := convolve3x3(planeFromGray(gray), gray.Rect.Dx(), gray.Rect.Dy(), kernel)
	absPlane(out)
	return grayFromPlane(normalizePlane(out), gray.Rect.Dx(), gray.Rect.Dy())
}

func planeFromGray(gray *image.Gray) []float64 {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	plane := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for x, v := range row {
			plane[y*w+x] = float64(v)
		}
	}
	return plane
}

func grayFromPlane(plane []float64, w, h int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := plane[y*w+x]
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			out.Pix[y*out.Stride+x] = uint8(v)
		}
	}
	return out
}

// gaussianBlur applies a separable Gaussian with fixed sigma and radius.
func gaussianBlur(plane []float64, w, h int) []float64 {
	kernel := make([]float64, 2*gaussianRadius+1)
	var sum float64
	for i := range kernel {
		d := float64(i - gaussianRadius)
		kernel[i] = math.Exp(-(d * d) / (2 * gaussianSigma * gaussianSigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	// Horizontal pass.
	tmp := make([]float64, len(plane))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for k := -gaussianRadius; k <= gaussianRadius; k++ {
				acc += kernel[k+gaussianRadius] * plane[y*w+clamp(x+k, w)]
			}
			tmp[y*w+x] = acc
		}
	}
	// Vertical pass.
	out := make([]float64, len(plane))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for k := -gaussianRadius; k <= gaussianRadius; k++ {
				acc += kernel[k+gaussianRadius] * tmp[clamp(y+k, h)*w+x]
			}
			out[y*w+x] = acc
		}
	}
	return out
}

func convolve3x3(plane []float64, w, h int, kernel [3][3]float64) []float64 {
	out := make([]float64, len(plane))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					acc += kernel[ky+1][kx+1] * plane[clamp(y+ky, h)*w+clamp(x+kx, w)]
				}
			}
			out[y*w+x] = acc
		}
	}
	return out
}

func absPlane(plane []float64) {
	for i, v := range plane {
		plane[i] = math.Abs(v)
	}
}

// normalizePlane stretches values to the full 0-255 range. A flat plane maps
// to all zeros, matching the depth service's handling of constant images.
func normalizePlane(plane []float64) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range plane {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	out := make([]float64, len(plane))
	if hi <= lo {
		return out
	}
	for i, v := range plane {
		out[i] = (v - lo) / (hi - lo) * 255
	}
	return out
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
