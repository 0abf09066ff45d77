package posemath

import "gonum.org/v1/gonum/mat"

// nearestRotation projects m onto SO(3) with an SVD, flipping the last
// singular direction when the product would be a reflection.
func nearestRotation(m Rotation) Rotation {
	data := make([]float64, 9)
	copy(data, m[:])
	var svd mat.SVD
	if !svd.Factorize(mat.NewDense(3, 3, data), mat.SVDFull) {
		return m
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var uvt mat.Dense
	uvt.Mul(&u, v.T())
	if mat.Det(&uvt) < 0 {
		for i := 0; i < 3; i++ {
			v.Set(i, 2, -v.At(i, 2))
		}
		uvt.Mul(&u, v.T())
	}

	var out Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i*3+j] = uvt.At(i, j)
		}
	}
	return out
}
