package dither

// Bayer is the 4x4 ordered-dither pattern. Each level 0-15 appears once.
var Bayer = [4][4]uint8{
	{0, 8, 2, 10},
	{12, 4, 14, 6},
	{3, 11, 1, 9},
	{15, 7, 13, 5},
}

// Matrix holds thresholds normalized into (0,1).
type Matrix [4][4]float64

func normalize(levels [4][4]uint8) Matrix {
	var m Matrix
	for y, row := range levels {
		for x, v := range row {
			m[y][x] = (float64(v) + 0.5) / 16
		}
	}
	return m
}

var Thresholds = normalize(Bayer)

// At returns the threshold for pixel (x, y), tiling the matrix.
func (m *Matrix) At(x, y int) float64 {
	return m[y&3][x&3]
}

// spread is the full swing of the dither offset in channel units.
const spread = 64

// offsets precomputes (t-0.5)*64*strength for the whole tile.
func (m *Matrix) offsets(strength float64) [4][4]float64 {
	var o [4][4]float64
	for y := range 4 {
		for x := range 4 {
			o[y][x] = (m[y][x] - 0.5) * spread * strength
		}
	}
	return o
}
