package terrain

import "math"

// smoothstep is the quintic fade 6t^5 - 15t^4 + 10t^3.
func smoothstep(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func mix(a, b, t float64) float64 {
	return a + (b-a)*t
}

// latticeHash mixes a lattice corner and seed with the SplitMix64 finalizer.
func latticeHash(x, y, z, seed int64) float64 {
	h := uint64(x)*0x9E3779B97F4A7C15 ^ uint64(y)*0xC2B2AE3D27D4EB4F ^ uint64(z)*0x165667B19E3779F9
	h += uint64(seed) + 0x9E3779B97F4A7C15
	h = (h ^ (h >> 30)) * 0xBF58476D1CE4E5B9
	h = (h ^ (h >> 27)) * 0x94D049BB133111EB
	h ^= h >> 31
	return float64(h&0xFFFFFFFF) / float64(0xFFFFFFFF)
}

// valueNoise returns trilinearly blended lattice values in [0, 1].
func valueNoise(x, y, z float64, seed int64) float64 {
	fx, fy, fz := math.Floor(x), math.Floor(y), math.Floor(z)
	ix, iy, iz := int64(fx), int64(fy), int64(fz)
	tx, ty, tz := smoothstep(x-fx), smoothstep(y-fy), smoothstep(z-fz)

	var c [2][2]float64
	for dy := int64(0); dy < 2; dy++ {
		for dz := int64(0); dz < 2; dz++ {
			c[dy][dz] = mix(
				latticeHash(ix, iy+dy, iz+dz, seed),
				latticeHash(ix+1, iy+dy, iz+dz, seed),
				tx,
			)
		}
	}
	return mix(mix(c[0][0], c[1][0], ty), mix(c[0][1], c[1][1], ty), tz)
}

// fractalNoise sums octaves of valueNoise, normalized back to [0, 1].
func fractalNoise(x, y, z float64, seed int64, octaves int, persistence, lacunarity float64) float64 {
	amp, freq := 1.0, 1.0
	var sum, norm float64
	for i := 0; i < octaves; i++ {
		sum += valueNoise(x*freq, y*freq, z*freq, seed+int64(i)*131) * amp
		norm += amp
		amp *= persistence
		freq *= lacunarity
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}
