// Package packaging converts between flat tablet counts and the
// carton > big box > small box > strip > tablet packaging hierarchy.
package packaging

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidHierarchy = errors.New("invalid packaging hierarchy")
	ErrNegativeUnits    = errors.New("unit count must not be negative")
)

// Hierarchy holds the per-level multipliers of a batch, largest level first.
type Hierarchy struct {
	BoxesPerCarton    int `json:"boxesPerCarton"`
	SmallBoxesPerBox  int `json:"smallBoxesPerBox"`
	StripsPerSmallBox int `json:"stripsPerSmallBox"`
	TabletsPerStrip   int `json:"tabletsPerStrip"`
}

// Breakdown is a mixed-radix view of a tablet count.
type Breakdown struct {
	Cartons    int64 `json:"cartons"`
	BigBoxes   int64 `json:"bigBoxes"`
	SmallBoxes int64 `json:"smallBoxes"`
	Strips     int64 `json:"strips"`
	Tablets    int64 `json:"tablets"`
}

func (h Hierarchy) Multipliers() []int {
	return []int{h.BoxesPerCarton, h.SmallBoxesPerBox, h.StripsPerSmallBox, h.TabletsPerStrip}
}

func (h Hierarchy) Validate() error {
	_, err := unitSizes(h.Multipliers())
	return err
}

// UnitsPerBigBox is the tablet count of one big box, the unit distributions move in.
func (h Hierarchy) UnitsPerBigBox() (int64, error) {
	sizes, err := unitSizes(h.Multipliers())
	if err != nil {
		return 0, err
	}
	return sizes[1], nil
}

func (h Hierarchy) UnitsPerCarton() (int64, error) {
	sizes, err := unitSizes(h.Multipliers())
	if err != nil {
		return 0, err
	}
	return sizes[0], nil
}

// TotalUnits returns the tablet count of totalCartons full cartons.
func (h Hierarchy) TotalUnits(totalCartons int) (int64, error) {
	if totalCartons <= 0 {
		return 0, fmt.Errorf("%w: totalCartons must be positive", ErrInvalidHierarchy)
	}
	perCarton, err := h.UnitsPerCarton()
	if err != nil {
		return 0, err
	}
	return mulChecked(perCarton, int64(totalCartons))
}

// TotalBigBoxes returns the number of big boxes in totalCartons full cartons.
func (h Hierarchy) TotalBigBoxes(totalCartons int) (int64, error) {
	if totalCartons <= 0 {
		return 0, fmt.Errorf("%w: totalCartons must be positive", ErrInvalidHierarchy)
	}
	if err := h.Validate(); err != nil {
		return 0, err
	}
	return mulChecked(int64(h.BoxesPerCarton), int64(totalCartons))
}

func (h Hierarchy) Breakdown(units int64) (Breakdown, error) {
	counts, err := Decompose(units, h.Multipliers())
	if err != nil {
		return Breakdown{}, err
	}
	return Breakdown{
		Cartons:    counts[0],
		BigBoxes:   counts[1],
		SmallBoxes: counts[2],
		Strips:     counts[3],
		Tablets:    counts[4],
	}, nil
}

// Units folds a breakdown back into a tablet count.
func (h Hierarchy) Units(b Breakdown) (int64, error) {
	return Compose([]int64{b.Cartons, b.BigBoxes, b.SmallBoxes, b.Strips, b.Tablets}, h.Multipliers())
}

// Decompose splits units over the levels described by multipliers (largest
// level first). The result has len(multipliers)+1 entries; the last one is
// the count of the smallest unit.
func Decompose(units int64, multipliers []int) ([]int64, error) {
	if units < 0 {
		return nil, ErrNegativeUnits
	}
	sizes, err := unitSizes(multipliers)
	if err != nil {
		return nil, err
	}

	counts := make([]int64, len(sizes))
	remainder := units
	for i, size := range sizes {
		counts[i] = remainder / size
		remainder -= counts[i] * size
	}
	return counts, nil
}

// Compose is the inverse of Decompose.
func Compose(counts []int64, multipliers []int) (int64, error) {
	sizes, err := unitSizes(multipliers)
	if err != nil {
		return 0, err
	}
	if len(counts) != len(sizes) {
		return 0, fmt.Errorf("%w: expected %d levels, got %d", ErrInvalidHierarchy, len(sizes), len(counts))
	}

	var total int64
	for i, c := range counts {
		if c < 0 {
			return 0, ErrNegativeUnits
		}
		part, err := mulChecked(c, sizes[i])
		if err != nil {
			return 0, err
		}
		if total > math.MaxInt64-part {
			return 0, fmt.Errorf("%w: total overflows", ErrInvalidHierarchy)
		}
		total += part
	}
	return total, nil
}

// unitSizes returns the size of one unit of each level in smallest units,
// from the largest level down to 1.
func unitSizes(multipliers []int) ([]int64, error) {
	sizes := make([]int64, len(multipliers)+1)
	sizes[len(multipliers)] = 1
	for i := len(multipliers) - 1; i >= 0; i-- {
		m := multipliers[i]
		if m <= 0 {
			return nil, fmt.Errorf("%w: level %d multiplier %d", ErrInvalidHierarchy, i, m)
		}
		s, err := mulChecked(sizes[i+1], int64(m))
		if err != nil {
			return nil, err
		}
		sizes[i] = s
	}
	return sizes, nil
}

func mulChecked(a, b int64) (int64, error) {
	if a != 0 && b > math.MaxInt64/a {
		return 0, fmt.Errorf("%w: quantity overflows", ErrInvalidHierarchy)
	}
	return a * b, nil
}
