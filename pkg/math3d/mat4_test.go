package math3d

import (
	"math"
	"testing"
)

func TestTRSMatchesComposition(t *testing.T) {
	// 90 degrees around Z
	half := math.Pi / 4
	r := [4]float64{0, 0, math.Sin(half), math.Cos(half)}

	got := TRS(V3(1, 2, 3), r, V3(2, 2, 2))
	rotZ := Mat4{
		0, 1, 0, 0,
		-1, 0, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	want := Translate(V3(1, 2, 3)).Mul(rotZ).Mul(Scale(V3(2, 2, 2)))

	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("TRS[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTRSZeroQuaternionIsIdentityRotation(t *testing.T) {
	got := TRS(V3(0, 0, 0), [4]float64{}, V3(1, 1, 1))
	if got != Identity() {
		t.Errorf("TRS with zero quaternion = %v, want identity", got)
	}
}

func TestMulVec3(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
		in   Vec3
		want Vec3
	}{
		{"identity", Identity(), V3(1, 2, 3), V3(1, 2, 3)},
		{"translate", Translate(V3(1, 0, -1)), V3(1, 2, 3), V3(2, 2, 2)},
		{"scale", Scale(V3(2, 3, 4)), V3(1, 1, 1), V3(2, 3, 4)},
		{"rotate x", TRS(V3(0, 0, 0), [4]float64{math.Sin(math.Pi / 4), 0, 0, math.Cos(math.Pi / 4)}, V3(1, 1, 1)), V3(0, 1, 0), V3(0, 0, 1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.m.MulVec3(tc.in)
			if !got.Equal(tc.want, 1e-9) {
				t.Errorf("MulVec3(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestMulVec3DirIgnoresTranslation(t *testing.T) {
	m := Translate(V3(10, 20, 30))
	got := m.MulVec3Dir(V3(0, 0, 1))
	if !got.Equal(V3(0, 0, 1), 1e-12) {
		t.Errorf("MulVec3Dir = %v, want (0, 0, 1)", got)
	}
}

func TestAddScaledBlendsMatrices(t *testing.T) {
	var acc Mat4
	acc = acc.AddScaled(Translate(V3(2, 0, 0)), 0.5)
	acc = acc.AddScaled(Translate(V3(0, 2, 0)), 0.5)

	got := acc.MulVec3(Zero3())
	if !got.Equal(V3(1, 1, 0), 1e-12) {
		t.Errorf("blended translation = %v, want (1, 1, 0)", got)
	}
}

func TestVec3Normalize(t *testing.T) {
	n := V3(3, 0, 4).Normalize()
	if math.Abs(n.Len()-1) > 1e-12 {
		t.Errorf("normalized length = %v, want 1", n.Len())
	}
	if z := Zero3().Normalize(); z != Zero3() {
		t.Errorf("Normalize(zero) = %v, want zero", z)
	}
}
