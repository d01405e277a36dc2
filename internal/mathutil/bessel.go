// Package mathutil provides the special functions needed for filter design.
package mathutil

import "math"

// Chebyshev approximation thresholds and coefficients for I₀.
// Reference: Abramowitz & Stegun, "Handbook of Mathematical Functions".
const (
	besselSmallArgThreshold = 3.75

	besselI0Coeff1 = 3.5156229
	besselI0Coeff2 = 3.0899424
	besselI0Coeff3 = 1.2067492
	besselI0Coeff4 = 0.2659732
	besselI0Coeff5 = 0.360768e-1
	besselI0Coeff6 = 0.45813e-2

	besselI0AsympCoeff0 = 0.39894228
	besselI0AsympCoeff1 = 0.1328592e-1
	besselI0AsympCoeff2 = 0.225319e-2
	besselI0AsympCoeff3 = -0.157565e-2
	besselI0AsympCoeff4 = 0.916281e-2
	besselI0AsympCoeff5 = -0.2057706e-1
	besselI0AsympCoeff6 = 0.2635537e-1
	besselI0AsympCoeff7 = -0.1647633e-1
	besselI0AsympCoeff8 = 0.392377e-2
)

// BesselI0 computes the modified Bessel function of the first kind, order
// zero: I₀(x). It is used by the Kaiser window in the band-pass kernel
// design. Accuracy is around seven digits, plenty for window design.
func BesselI0(x float64) float64 {
	// I₀ is even, so work with |x|.
	ax := math.Abs(x)

	if ax < besselSmallArgThreshold {
		// Direct polynomial series for small arguments.
		t := x / besselSmallArgThreshold
		t *= t

		return 1.0 + t*(besselI0Coeff1+t*(besselI0Coeff2+t*(besselI0Coeff3+
			t*(besselI0Coeff4+t*(besselI0Coeff5+t*besselI0Coeff6)))))
	}

	// Asymptotic expansion with exponential scaling for large arguments:
	// I₀(x) ≈ (eˣ / √x) · P(3.75/x)
	t := besselSmallArgThreshold / ax

	result := besselI0AsympCoeff0 + t*(besselI0AsympCoeff1+t*(besselI0AsympCoeff2+
		t*(besselI0AsympCoeff3+t*(besselI0AsympCoeff4+t*(besselI0AsympCoeff5+
			t*(besselI0AsympCoeff6+t*(besselI0AsympCoeff7+t*besselI0AsympCoeff8)))))))

	return math.Exp(ax) * result / math.Sqrt(ax)
}
