package simpledb

// TableStats holds statistics about one base table (page and tuple counts
// plus a per-column selectivity estimator) for use by a cost-based planner.

import (
	"fmt"
	"log"
)

// Stats is the interface of statistics maintained for a table.
type Stats interface {
	EstimateScanCost() float64
	EstimateCardinality(selectivity float64) int
	EstimateSelectivity(field string, op BoolOp, value DBValue) (float64, error)
}

// CostPerPage is the assumed cost of reading one page from disk, in
// arbitrary cost units.
const CostPerPage = 1000

// NumHistBins is the number of bins used for integer histograms.
const NumHistBins = 100

// columnStats estimates the selectivity of "column op value" for one column.
type columnStats interface {
	estimate(op BoolOp, value DBValue) (float64, error)
}

type intColumnStats struct {
	name string
	hist *IntHistogram
}

func (s *intColumnStats) estimate(op BoolOp, value DBValue) (float64, error) {
	f, ok := value.(IntField)
	if !ok {
		return 1.0, SimpleDBError{TypeMismatchError, fmt.Sprintf("column %q is int but operand %v is not", s.name, value)}
	}
	return s.hist.EstimateSelectivity(op, int64(f.Value)), nil
}

type stringColumnStats struct {
	name string
	hist *StringHistogram
}

func (s *stringColumnStats) estimate(op BoolOp, value DBValue) (float64, error) {
	f, ok := value.(StringField)
	if !ok {
		return 1.0, SimpleDBError{TypeMismatchError, fmt.Sprintf("column %q is string but operand %v is not", s.name, value)}
	}
	return s.hist.EstimateSelectivity(op, f.Value), nil
}

type TableStats struct {
	pageCount  int
	tupleCount int
	columns    map[string]columnStats
}

// int64Bounds returns the minimum and maximum of vs, or [0, 0] when vs is
// empty, which yields a degenerate single-bucket histogram.
func int64Bounds(vs []int64) (int64, int64) {
	if len(vs) == 0 {
		return 0, 0
	}
	lo, hi := vs[0], vs[0]
	for _, v := range vs[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}

// ComputeTableStats scans dbFile once under a fresh transaction, feeding
// string sketches directly and buffering integer columns so their histogram
// ranges can be bounded before bucketing.
func ComputeTableStats(bp *BufferPool, dbFile DBFile) (*TableStats, error) {
	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		return nil, err
	}
	defer bp.CommitTransaction(tid)

	td := dbFile.Descriptor()
	intSamples := make([][]int64, len(td.Fields))
	strSketches := make([]*StringHistogram, len(td.Fields))
	for i, f := range td.Fields {
		if f.Ftype == StringType {
			h, err := NewStringHistogram()
			if err != nil {
				return nil, err
			}
			strSketches[i] = h
		}
	}

	iter, err := dbFile.Iterator(tid)
	if err != nil {
		return nil, err
	}
	tupleCount := 0
	for {
		tup, err := iter()
		if err != nil {
			return nil, err
		}
		if tup == nil {
			break
		}
		for i, f := range td.Fields {
			switch f.Ftype {
			case IntType:
				intSamples[i] = append(intSamples[i], int64(tup.Fields[i].(IntField).Value))
			case StringType:
				strSketches[i].AddValue(tup.Fields[i].(StringField).Value)
			default:
				return nil, fmt.Errorf("unexpected column type %v", f.Ftype)
			}
		}
		tupleCount++
	}

	columns := make(map[string]columnStats, len(td.Fields))
	for i, f := range td.Fields {
		switch f.Ftype {
		case IntType:
			lo, hi := int64Bounds(intSamples[i])
			h, err := NewIntHistogram(NumHistBins, lo, hi)
			if err != nil {
				return nil, err
			}
			for _, v := range intSamples[i] {
				h.AddValue(v)
			}
			columns[f.Fname] = &intColumnStats{f.Fname, h}
		case StringType:
			columns[f.Fname] = &stringColumnStats{f.Fname, strSketches[i]}
		}
	}

	return &TableStats{dbFile.NumPages(), tupleCount, columns}, nil
}

// EstimateScanCost estimates the cost of a full sequential scan, assuming no
// cached pages and whole-page reads.
func (t *TableStats) EstimateScanCost() float64 {
	return float64(t.pageCount) * CostPerPage
}

// EstimateCardinality returns the expected number of tuples surviving a
// predicate with the given selectivity.
func (t *TableStats) EstimateCardinality(selectivity float64) int {
	return int(float64(t.tupleCount) * selectivity)
}

// EstimateSelectivity looks up the named column's estimator and evaluates
// "column op value" against it. A column without statistics is assumed to
// filter nothing.
func (t *TableStats) EstimateSelectivity(field string, op BoolOp, value DBValue) (float64, error) {
	col, ok := t.columns[field]
	if !ok {
		log.Printf("WARNING: no statistics for column %q", field)
		return 1.0, nil
	}
	return col.estimate(op, value)
}
