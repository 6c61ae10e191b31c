package math

import (
	"testing"

	"github.com/chewxy/math32"
)

func approx(a, b float32) bool {
	return math32.Abs(a-b) < 1e-5
}

func approxVec(a, b Vec3) bool {
	return approx(a.X, b.X) && approx(a.Y, b.Y) && approx(a.Z, b.Z)
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3).Mul(Scale(2, 2, 2))
	result := m.Mul(Identity())

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTransformVec3(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
		in   Vec3
		want Vec3
	}{
		{"identity", Identity(), Vec3{1, 2, 3}, Vec3{1, 2, 3}},
		{"translate", Translate(5, 10, 15), Vec3{1, 1, 1}, Vec3{6, 11, 16}},
		{"scale", Scale(2, 3, 4), Vec3{1, 1, 1}, Vec3{2, 3, 4}},
		{"scale then translate", Translate(1, 0, 0).Mul(Scale(2, 2, 2)), Vec3{1, 1, 1}, Vec3{3, 2, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.TransformVec3(tt.in); !approxVec(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransformDirectionIgnoresTranslation(t *testing.T) {
	m := Translate(100, 200, 300).Mul(Scale(2, 2, 2))
	got := m.TransformDirection(Vec3{0, 1, 0})
	if !approxVec(got, Vec3{0, 2, 0}) {
		t.Errorf("got %v, want (0, 2, 0)", got)
	}
}

func TestQuatToMat4(t *testing.T) {
	s, c := math32.Sincos(math32.Pi / 4)
	q := Quat{Y: s, W: c}
	got := q.ToMat4().TransformVec3(Vec3{1, 0, 0})
	if !approxVec(got, Vec3{0, 0, -1}) {
		t.Errorf("90 degree Y rotation of +X: got %v, want (0, 0, -1)", got)
	}

	if QuatIdentity().ToMat4() != Identity() {
		t.Error("identity quaternion should produce identity matrix")
	}
}

func TestFromTRS(t *testing.T) {
	m := FromTRS(Vec3{1, 2, 3}, QuatIdentity(), Vec3{2, 2, 2})
	got := m.TransformVec3(Vec3{1, 1, 1})
	if !approxVec(got, Vec3{3, 4, 5}) {
		t.Errorf("got %v, want (3, 4, 5)", got)
	}
}

func TestQuatNormalize(t *testing.T) {
	q := Quat{X: 0, Y: 0, Z: 0, W: 2}.Normalize()
	if !approx(q.W, 1) {
		t.Errorf("expected W=1, got %f", q.W)
	}
	if (Quat{}).Normalize() != QuatIdentity() {
		t.Error("degenerate quaternion should normalize to identity")
	}
}

func TestVec3MinMax(t *testing.T) {
	a := Vec3{1, 5, -2}
	b := Vec3{3, -1, 0}
	if got := a.Min(b); got != (Vec3{1, -1, -2}) {
		t.Errorf("Min = %v", got)
	}
	if got := a.Max(b); got != (Vec3{3, 5, 0}) {
		t.Errorf("Max = %v", got)
	}
}

func TestVec3Normalize(t *testing.T) {
	if got := (Vec3{0, 3, 4}).Normalize(); !approxVec(got, Vec3{0, 0.6, 0.8}) {
		t.Errorf("got %v", got)
	}
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Errorf("zero vector should stay zero, got %v", got)
	}
}
