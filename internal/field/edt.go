package field

import "github.com/banshee-data/position.report/internal/grid"

// Two-pass exact Euclidean distance transform after Felzenszwalb and
// Huttenlocher, "Distance Transforms of Sampled Functions". Each pass runs
// the 1-D squared distance transform along one axis; the composition yields
// exact squared Euclidean distances in O(cells).

// edtInf stands in for +infinity. A large finite value keeps the parabola
// intersection arithmetic free of NaNs for rows with no occupied cell.
const edtInf = 1e20

// edt1d computes the 1-D squared distance transform of the sampled function f
// into d. v (len n) and z (len n+1) are caller-provided scratch: v holds the
// indices of parabolas in the lower envelope, z the boundaries between them.
func edt1d(f, d []float64, v []int, z []float64) {
	n := len(f)
	k := 0
	v[0] = 0
	z[0] = -edtInf
	z[1] = edtInf
	for q := 1; q < n; q++ {
		s := intersect(f, q, v[k])
		for s <= z[k] {
			k--
			s = intersect(f, q, v[k])
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = edtInf
	}
	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		d[q] = dq*dq + f[v[k]]
	}
}

// intersect returns the abscissa where the parabolas rooted at q and p cross.
func intersect(f []float64, q, p int) float64 {
	return ((f[q] + float64(q*q)) - (f[p] + float64(p*p))) / float64(2*q-2*p)
}

// squaredDistances computes, for every cell of g, the squared distance in
// cell units to the nearest occupied cell.
func squaredDistances(g *grid.OccupancyGrid) []float64 {
	w, h := g.Width, g.Height
	out := make([]float64, w*h)
	for i, c := range g.Cells {
		if c == grid.CellOccupied {
			out[i] = 0
		} else {
			out[i] = edtInf
		}
	}

	n := max(w, h)
	fbuf := make([]float64, n)
	dbuf := make([]float64, n)
	v := make([]int, n)
	z := make([]float64, n+1)

	// Pass 1: transform each column along the row axis.
	for col := 0; col < w; col++ {
		for row := 0; row < h; row++ {
			fbuf[row] = out[row*w+col]
		}
		edt1d(fbuf[:h], dbuf[:h], v[:h], z[:h+1])
		for row := 0; row < h; row++ {
			out[row*w+col] = dbuf[row]
		}
	}

	// Pass 2: transform each row along the column axis.
	for row := 0; row < h; row++ {
		copy(fbuf[:w], out[row*w:(row+1)*w])
		edt1d(fbuf[:w], dbuf[:w], v[:w], z[:w+1])
		copy(out[row*w:(row+1)*w], dbuf[:w])
	}
	return out
}
