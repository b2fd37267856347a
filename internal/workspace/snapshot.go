package workspace

// DatasetInfo summarizes one loaded dataset.
type DatasetInfo struct {
	Index   int      `json:"index"`
	Name    string   `json:"name"`
	Rows    int      `json:"rows"`
	Columns int      `json:"columns"`
	Names   []string `json:"column_names,omitempty"`
}

// Snapshot is a point-in-time summary of the session state.
type Snapshot struct {
	DictionaryLoaded bool          `json:"dictionary_loaded"`
	DictionaryRows   int           `json:"dictionary_rows"`
	DictionaryFields []string      `json:"dictionary_fields,omitempty"`
	FixedWidth       bool          `json:"fixed_width"`
	LayoutLoaded     bool          `json:"layout_loaded"`
	ModelPath        string        `json:"model_path,omitempty"`
	Datasets         []DatasetInfo `json:"datasets"`
}

// Snapshot summarizes the current state.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		FixedWidth:   s.FixedWidth(),
		LayoutLoaded: s.Layout() != nil,
		ModelPath:    s.ModelPath(),
	}
	if d := s.Dictionary(); d != nil {
		snap.DictionaryLoaded = true
		snap.DictionaryRows = d.NumRows()
		snap.DictionaryFields = d.ColumnNames()
	}

	list := s.Datasets()
	snap.Datasets = make([]DatasetInfo, len(list))
	for i, d := range list {
		snap.Datasets[i] = DatasetInfo{
			Index:   i + 1,
			Name:    d.Name(),
			Rows:    d.NumRows(),
			Columns: d.NumCols(),
			Names:   d.ColumnNames(),
		}
	}
	return snap
}
