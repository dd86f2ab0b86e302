package simpledb

// SeqScan streams every tuple of a table under a transaction, optionally
// qualifying the emitted descriptor with a table alias so that downstream
// operators can resolve qualified column references. The underlying heap
// file iterator requests pages with read permission.
type SeqScan struct {
	file  DBFile
	alias string
	desc  *TupleDesc
}

func NewSeqScan(file DBFile, alias string) *SeqScan {
	desc := file.Descriptor().copy()
	if alias != "" {
		desc.setTableAlias(alias)
	}
	return &SeqScan{file, alias, desc}
}

func (s *SeqScan) Descriptor() *TupleDesc {
	return s.desc
}

func (s *SeqScan) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	fileIter, err := s.file.Iterator(tid)
	if err != nil {
		return nil, err
	}
	return func() (*Tuple, error) {
		t, err := fileIter()
		if err != nil || t == nil {
			return nil, err
		}
		return &Tuple{*s.desc, t.Fields, t.Rid}, nil
	}, nil
}
