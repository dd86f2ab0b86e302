package simpledb

// StringHistogram estimates selectivities over a single string field with a
// count-min sketch, which answers point queries without storing the strings
// themselves.

import (
	"github.com/tylertreat/BoomFilters"
)

type StringHistogram struct {
	cms *boom.CountMinSketch
}

func NewStringHistogram() (*StringHistogram, error) {
	cms := boom.NewCountMinSketch(0.001, 0.999)
	return &StringHistogram{cms}, nil
}

func (h *StringHistogram) AddValue(s string) {
	h.cms.Add([]byte(s))
}

// EstimateSelectivity returns the estimated fraction of recorded values
// satisfying "value op s". The sketch answers equality (and its LIKE and
// not-equal derivatives); range operators on strings fall back to no
// filtering.
func (h *StringHistogram) EstimateSelectivity(op BoolOp, s string) float64 {
	total := h.cms.TotalCount()
	if total == 0 {
		return 0.0
	}
	eq := float64(h.cms.Count([]byte(s))) / float64(total)
	switch op {
	case OpEq, OpLike:
		return eq
	case OpNeq:
		return 1.0 - eq
	}
	return 1.0
}
