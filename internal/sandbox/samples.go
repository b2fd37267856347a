package sandbox

// Sample is a ready-made snippet offered to users.
type Sample struct {
	Name string
	Code string
}

// Samples are listed in display order.
var Samples = []Sample{
	{
		Name: "Show first loaded dataset",
		Code: `# Access the first dataset in session (if available)
if dataframes:
    df = dataframes[0]
    result = df.head()
    print("Loaded dataset with", len(df), "rows and", len(df.columns), "columns")
else:
    print("No datasets loaded in session.")
`,
	},
	{
		Name: "Column distribution",
		Code: `# Distribution of a column from the first loaded dataset
if dataframes:
    df = dataframes[0]
    col = df.columns[0] if df.ncols > 0 else None
    if col:
        counts = df.fillna("Missing").value_counts(col)
        print("Distribution of " + str(col) + ":")
        for value, count in counts.items():
            print(value, count)
        result = table.from_rows([{col: value, "count": count} for value, count in counts.items()])
    else:
        print("No columns found in the first loaded dataset")
else:
    print("No datasets loaded in session.")
`,
	},
}

// SampleByName returns the named sample.
func SampleByName(name string) (Sample, bool) {
	for _, s := range Samples {
		if s.Name == name {
			return s, true
		}
	}
	return Sample{}, false
}
