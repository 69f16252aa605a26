package topk

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/pcindex/utils"
)

func TestMapEmpty(t *testing.T) {
	m, err := New[float64, int](3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Empty(), test.ShouldBeTrue)
	test.That(t, m.Full(), test.ShouldBeFalse)
	test.That(t, m.Cap(), test.ShouldEqual, 3)
	test.That(t, m.Head(), test.ShouldEqual, -1)
	test.That(t, m.Tail(), test.ShouldEqual, -1)

	_, ok := m.HeadKey()
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = m.TailKey()
	test.That(t, ok, test.ShouldBeFalse)

	keys, values := m.Elems()
	test.That(t, keys, test.ShouldBeEmpty)
	test.That(t, values, test.ShouldBeEmpty)

	_, err = New[float64, int](0)
	test.That(t, errors.Is(err, utils.ErrInvalidConfiguration), test.ShouldBeTrue)
}

func TestMapInsert(t *testing.T) {
	m, err := New[float64, string](3)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, m.Insert(5, "e"), test.ShouldBeTrue)
	test.That(t, m.Insert(1, "a"), test.ShouldBeTrue)
	test.That(t, m.Insert(3, "c"), test.ShouldBeTrue)
	test.That(t, m.Full(), test.ShouldBeTrue)

	head, ok := m.HeadKey()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, head, test.ShouldEqual, 1.0)
	tail, ok := m.TailKey()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, tail, test.ShouldEqual, 5.0)

	// At or above the tail is rejected once full.
	test.That(t, m.Insert(5, "e2"), test.ShouldBeFalse)
	test.That(t, m.Insert(9, "i"), test.ShouldBeFalse)

	// Below the tail evicts it.
	test.That(t, m.Insert(2, "b"), test.ShouldBeTrue)
	keys, values := m.Elems()
	test.That(t, keys, test.ShouldResemble, []float64{1, 2, 3})
	test.That(t, values, test.ShouldResemble, []string{"a", "b", "c"})

	test.That(t, m.Insert(0, "z"), test.ShouldBeTrue)
	keys, values = m.Elems()
	test.That(t, keys, test.ShouldResemble, []float64{0, 1, 2})
	test.That(t, values, test.ShouldResemble, []string{"z", "a", "b"})
	test.That(t, m.Len(), test.ShouldEqual, 3)

	m.Reset()
	test.That(t, m.Empty(), test.ShouldBeTrue)
	test.That(t, m.Insert(7, "g"), test.ShouldBeTrue)
	keys, _ = m.Elems()
	test.That(t, keys, test.ShouldResemble, []float64{7})
}

func TestMapEqualKeysKeepInsertionOrder(t *testing.T) {
	m, err := New[int, int](4)
	test.That(t, err, test.ShouldBeNil)
	for i, k := range []int{2, 1, 2, 1} {
		test.That(t, m.Insert(k, i), test.ShouldBeTrue)
	}
	keys, values := m.Elems()
	test.That(t, keys, test.ShouldResemble, []int{1, 1, 2, 2})
	test.That(t, values, test.ShouldResemble, []int{1, 3, 0, 2})
}

func TestMapKeepsSmallest(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, capacity := range []int{1, 2, 7, 50} {
		for trial := 0; trial < 20; trial++ {
			n := rng.Intn(200)
			all := make([]float64, n)
			m, err := New[float64, int](capacity)
			test.That(t, err, test.ShouldBeNil)
			for i := range all {
				all[i] = rng.Float64() * 100
				m.Insert(all[i], i)
			}
			sort.Float64s(all)
			want := all[:min(capacity, n)]

			keys, values := m.Elems()
			test.That(t, keys, test.ShouldResemble, want)
			test.That(t, len(values), test.ShouldEqual, len(want))
			test.That(t, m.Len(), test.ShouldEqual, len(want))
		}
	}
}
