package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
	"github.com/harmonize-tools/s4h-workbench/internal/adapter/dictionary"
	"github.com/harmonize-tools/s4h-workbench/internal/stage"
	"github.com/harmonize-tools/s4h-workbench/internal/state"
	"github.com/harmonize-tools/s4h-workbench/internal/telemetry"
	"github.com/harmonize-tools/s4h-workbench/internal/testutil"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// fakeExtractor returns fixed datasets or an error, or panics.
type fakeExtractor struct {
	datasets []*core.Dataset
	err      error
	panic    bool
	got      adapter.ExtractRequest
}

func (f *fakeExtractor) Extract(_ context.Context, req adapter.ExtractRequest) ([]*core.Dataset, error) {
	f.got = req
	if f.panic {
		panic("extractor exploded")
	}
	return f.datasets, f.err
}

type fakeTranslator struct {
	failOn string
	calls  []string
}

func (f *fakeTranslator) Translate(_ context.Context, dict *core.Dataset, field, lang string) (*core.Dataset, error) {
	f.calls = append(f.calls, field)
	if field == f.failOn {
		return nil, errors.New("quota exceeded")
	}
	out := dict.Clone()
	values := make([]core.Value, out.NumRows())
	for i, v := range out.Column(field).Values {
		values[i] = core.Text(strings.ToUpper(v.String()))
	}
	if err := out.AddColumn(core.NewColumn(core.TranslatedField(field, lang), values...)); err != nil {
		return nil, err
	}
	return out, nil
}

type fakeClassifier struct{}

func (fakeClassifier) Classify(_ context.Context, dict *core.Dataset, fields []string, _ string) (*core.Dataset, error) {
	if missing := core.MissingFields(dict, fields...); len(missing) > 0 {
		return nil, errors.New("missing " + strings.Join(missing, ", "))
	}
	out := dict.Clone()
	values := make([]core.Value, out.NumRows())
	for i := range values {
		values[i] = core.Text("Health")
	}
	if out.HasColumn(core.FieldCategory) {
		return out, out.SetColumn(core.FieldCategory, values)
	}
	return out, out.AddColumn(core.NewColumn(core.FieldCategory, values...))
}

func newEngine(t *testing.T, ex adapter.Extractor) (*Engine, *state.SQLiteStore) {
	t.Helper()
	history := state.NewSQLiteStore(nil)
	require.NoError(t, history.Open(state.MemoryPath))
	t.Cleanup(func() { _ = history.Close() })

	logger := testutil.NewTestLogger(t)
	e := New(Config{
		History:      history,
		Metrics:      telemetry.New(telemetry.Config{Enabled: true}),
		Standardizer: dictionary.NewStandardizer(logger),
		LayoutParser: dictionary.NewLayoutParser(logger),
		Translator:   &fakeTranslator{},
		Classifier:   fakeClassifier{},
		Extractors: func(kind adapter.SourceKind, _ *slog.Logger) (adapter.Extractor, error) {
			if ex == nil {
				return adapter.NewExtractor(kind, nil)
			}
			return ex, nil
		},
		Seed:   7,
		Logger: logger,
	})
	return e, history
}

func idAge(t *testing.T, name string, rows int) *core.Dataset {
	t.Helper()
	raw := make([][]string, rows)
	for i := range raw {
		raw[i] = []string{name + "-" + string(rune('a'+i)), "30"}
	}
	return testutil.Dataset(t, name, []string{"id", "age"}, raw...)
}

func TestEngine_HarmonizationRequiresDatasetsAndDictionary(t *testing.T) {
	e, history := newEngine(t, nil)
	ctx := context.Background()

	for _, out := range []Outcome{
		e.Prune(ctx, core.PruneParams{NaNThreshold: 0.5}),
		e.Merge(ctx, core.MergeParams{SimilarityThreshold: 1}),
		e.Select(ctx, core.SelectParams{Categories: []string{"Health"}}),
		e.Translate(ctx, nil, ""),
		e.Classify(ctx, "model.yaml", ""),
	} {
		assert.False(t, out.OK())
		assert.Equal(t, LevelWarning, out.Level, out.Stage)
		assert.Equal(t, core.KindPrecondition, out.Kind)
		assert.Contains(t, out.Message, "at least one loaded dataset")
	}

	e.Store().Add(idAge(t, "a", 2))
	out := e.Merge(ctx, core.MergeParams{SimilarityThreshold: 1})
	assert.Contains(t, out.Message, "an active dictionary")
	assert.Equal(t, 1, e.Store().Len(), "no mutation")

	runs, err := history.List(ctx, state.Filter{})
	require.NoError(t, err)
	require.Len(t, runs, 6)
	for _, r := range runs {
		assert.Equal(t, state.StatusRejected, r.Status)
	}
}

func TestEngine_ExtractAndMerge(t *testing.T) {
	ex := &fakeExtractor{datasets: []*core.Dataset{idAge(t, "a", 2), idAge(t, "b", 3)}}
	e, _ := newEngine(t, ex)
	ctx := context.Background()

	out := e.Extract(ctx, adapter.ExtractRequest{Inputs: []string{"data/"}})
	require.True(t, out.OK(), out.Message)
	assert.Equal(t, adapter.SourceFile, ex.got.Kind, "file is the default source")
	assert.Len(t, out.Details, 2)
	require.Equal(t, 2, e.Store().Len())

	e.Store().SetDictionary(testutil.Dictionary(t, []string{"id", "age"}, nil))
	out = e.Merge(ctx, core.MergeParams{SimilarityThreshold: 1})
	require.True(t, out.OK(), out.Message)
	assert.NotEmpty(t, out.RunID)

	list := e.Store().Datasets()
	require.Len(t, list, 1)
	assert.Equal(t, 5, list[0].NumRows())
	assert.Equal(t, []string{"id", "age"}, list[0].ColumnNames())
	assert.Equal(t, 1, e.Status().Datasets[0].Index)
}

func TestEngine_ExtractFailures(t *testing.T) {
	ctx := context.Background()

	e, _ := newEngine(t, &fakeExtractor{})
	out := e.Extract(ctx, adapter.ExtractRequest{Inputs: []string{"x"}})
	assert.Equal(t, LevelWarning, out.Level)
	assert.Equal(t, "No data was extracted.", out.Message)

	e, _ = newEngine(t, &fakeExtractor{err: errors.New("connection refused")})
	out = e.Extract(ctx, adapter.ExtractRequest{Inputs: []string{"x"}})
	assert.Equal(t, LevelError, out.Level)
	assert.Equal(t, core.KindCollaborator, out.Kind)
	assert.Contains(t, out.Message, "connection refused")

	e, _ = newEngine(t, &fakeExtractor{panic: true})
	out = e.Extract(ctx, adapter.ExtractRequest{Inputs: []string{"x"}})
	assert.Equal(t, LevelError, out.Level)
	assert.Contains(t, out.Message, "extractor exploded")
	assert.Zero(t, e.Store().Len())

	out = e.Extract(ctx, adapter.ExtractRequest{})
	assert.Equal(t, core.KindParameter, out.Kind)

	e, _ = newEngine(t, nil)
	out = e.Extract(ctx, adapter.ExtractRequest{Kind: "ftp", Inputs: []string{"x"}})
	assert.Equal(t, core.KindParameter, out.Kind)
	assert.Contains(t, out.Message, "ftp")
}

func TestEngine_ExtractPassesLayoutInFixedWidthMode(t *testing.T) {
	ex := &fakeExtractor{datasets: []*core.Dataset{idAge(t, "a", 1)}}
	e, _ := newEngine(t, ex)
	ctx := context.Background()

	e.Store().SetDictionary(testutil.Dataset(t, "dictionary",
		[]string{core.FieldVariableName, core.FieldInitialPosition, core.FieldSize},
		[]string{"id", "1", "2"},
		[]string{"age", "3", "2"},
	))
	out := e.ParseLayout(ctx)
	require.True(t, out.OK(), out.Message)
	assert.True(t, e.Store().FixedWidth())
	assert.Equal(t, []string{"id [0, 2)", "age [2, 4)"}, out.Details)

	e.Extract(ctx, adapter.ExtractRequest{Inputs: []string{"x.txt"}})
	require.NotNil(t, ex.got.Options.Layout)
	assert.Equal(t, []string{"id", "age"}, ex.got.Options.Layout.Names)

	e.DisableFixedWidth()
	assert.False(t, e.Store().FixedWidth())
	assert.Nil(t, e.Store().Layout())
}

func TestEngine_SelectRejectsBeforeMutation(t *testing.T) {
	e, _ := newEngine(t, nil)
	ctx := context.Background()
	e.Store().Add(idAge(t, "a", 2))
	e.Store().SetDictionary(testutil.Dictionary(t, []string{"id", "age"}, map[string]string{"age": "Health"}))
	before := e.Store().Datasets()

	out := e.Select(ctx, core.SelectParams{})
	assert.Equal(t, core.KindParameter, out.Kind)
	out = e.Select(ctx, core.SelectParams{Categories: []string{"Health"}, KeyColumn: "id"})
	assert.Equal(t, core.KindParameter, out.Kind)

	after := e.Store().Datasets()
	require.Len(t, after, 1)
	assert.Same(t, before[0], after[0])

	out = e.Select(ctx, core.SelectParams{Categories: []string{"Health"}})
	require.True(t, out.OK(), out.Message)
	assert.Equal(t, []string{"age"}, e.Store().Datasets()[0].ColumnNames())
	assert.Equal(t, []string{"age"}, e.AvailableColumns())
}

func TestEngine_PruneIsReproducibleWithSeed(t *testing.T) {
	build := func() *Engine {
		e, _ := newEngine(t, nil)
		rows := make([][]string, 100)
		for i := range rows {
			v := ""
			if i%2 == 0 {
				v = "1"
			}
			rows[i] = []string{"1", v}
		}
		e.Store().Add(testutil.Dataset(t, "a", []string{"id", "half"}, rows...))
		e.Store().SetDictionary(testutil.Dictionary(t, []string{"id"}, nil))
		return e
	}
	params := core.PruneParams{NaNThreshold: 0.5, SampleFraction: 0.3}

	a, b := build(), build()
	outA := a.Prune(context.Background(), params)
	outB := b.Prune(context.Background(), params)
	require.True(t, outA.OK(), outA.Message)
	assert.Equal(t, a.Store().Datasets()[0].ColumnNames(), b.Store().Datasets()[0].ColumnNames())
	assert.Equal(t, outA.Message, outB.Message)
}

func TestEngine_TranslateIsAllOrNothing(t *testing.T) {
	e, _ := newEngine(t, nil)
	tr := &fakeTranslator{failOn: core.FieldDescription}
	e.translator = tr
	ctx := context.Background()

	e.Store().Add(idAge(t, "a", 1))
	dict := testutil.Dataset(t, "dictionary",
		[]string{core.FieldVariableName, core.FieldQuestion, core.FieldDescription},
		[]string{"age", "edad", "años"},
	)
	e.Store().SetDictionary(dict)

	out := e.Translate(ctx, nil, "")
	assert.Equal(t, LevelError, out.Level)
	assert.Contains(t, out.Message, "quota exceeded")
	assert.Same(t, dict, e.Store().Dictionary(), "dictionary unchanged on failure")

	tr.failOn = ""
	out = e.Translate(ctx, nil, "")
	require.True(t, out.OK(), out.Message)
	assert.Equal(t, []string{
		"question translated into question_en",
		"description translated into description_en",
		"possible_answers: skipped, not in dictionary",
	}, out.Details)
	assert.True(t, e.Store().Dictionary().HasColumn("description_en"))
}

func TestEngine_Classify(t *testing.T) {
	e, _ := newEngine(t, nil)
	ctx := context.Background()
	e.Store().Add(idAge(t, "a", 1))
	e.Store().SetDictionary(testutil.Dataset(t, "dictionary",
		[]string{core.FieldVariableName, core.FieldQuestion}, []string{"age", "edad"}))

	out := e.Classify(ctx, "model.yaml", "en")
	assert.Equal(t, core.KindCollaborator, out.Kind, "untranslated dictionary")

	require.True(t, e.Translate(ctx, []string{core.FieldQuestion}, "en").OK())
	out = e.Classify(ctx, "model.yaml", "en")
	assert.Equal(t, core.KindCollaborator, out.Kind, "still missing description_en")

	e.Store().SetDictionary(testutil.Dataset(t, "dictionary",
		append([]string{core.FieldVariableName}, core.ClassifierInputFields("en")...),
		[]string{"age", "age", "", ""}))
	out = e.Classify(ctx, "model.yaml", "")
	require.True(t, out.OK(), out.Message)
	assert.Equal(t, []string{"Health: 1"}, out.Details)
	assert.Equal(t, "model.yaml", e.Store().ModelPath())

	out = e.Classify(ctx, "", "")
	assert.True(t, out.OK(), "remembered model path is reused")
}

func TestEngine_ExploreErrorLeavesStore(t *testing.T) {
	e, history := newEngine(t, nil)
	e.Store().Add(idAge(t, "a", 2))
	before := e.Store().Datasets()

	out := e.Explore(context.Background(), "x = dataframes[0]\ny = 'boom' + 1\n")
	assert.True(t, out.Failed())
	assert.Contains(t, out.Stderr, "unknown binary op: string + int")
	assert.Same(t, before[0], e.Store().Datasets()[0])
	assert.Len(t, e.Store().Datasets(), 1)

	runs, err := history.List(context.Background(), state.Filter{Stage: string(stage.Explore)})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, state.StatusFailed, runs[0].Status)
}

func TestEngine_ExploreResultExportAndAdopt(t *testing.T) {
	e, _ := newEngine(t, nil)
	ctx := context.Background()
	dir := t.TempDir()

	out := e.Export(ctx, ExportRequest{Target: stage.ExportResult, Dir: dir})
	assert.Equal(t, core.KindPrecondition, out.Kind)

	res := e.Explore(ctx, "result = table.new({'x': [1, 2], 'y': ['a', None]})\nn = 2\n")
	require.False(t, res.Failed(), res.Stderr)
	require.NotNil(t, res.Result)
	assert.Same(t, res.Result, e.LastResult())
	assert.Equal(t, []string{"n"}, res.Bound)

	out = e.Export(ctx, ExportRequest{Target: stage.ExportResult, Dir: dir})
	require.True(t, out.OK(), out.Message)
	data, err := os.ReadFile(filepath.Join(dir, "playground_result.csv"))
	require.NoError(t, err)
	assert.Equal(t, "x,y\n1,a\n2,\n", string(data))

	out = e.AdoptResult(ctx)
	require.True(t, out.OK(), out.Message)
	require.Equal(t, 1, e.Store().Len())
	assert.NotSame(t, res.Result, e.Store().Datasets()[0])
}

func TestEngine_Export(t *testing.T) {
	e, _ := newEngine(t, nil)
	ctx := context.Background()
	dir := t.TempDir()

	out := e.Export(ctx, ExportRequest{Target: stage.ExportDatasets, Dir: dir})
	assert.Equal(t, core.KindPrecondition, out.Kind)
	out = e.Export(ctx, ExportRequest{Target: "everything", Dir: dir})
	assert.Equal(t, core.KindParameter, out.Kind)

	e.Store().Add(idAge(t, "a", 1), idAge(t, "b", 1))
	e.Store().SetDictionary(testutil.Dictionary(t, []string{"id"}, nil))

	out = e.Export(ctx, ExportRequest{Target: stage.ExportDatasets, Dir: dir, Delimiter: ";"})
	require.True(t, out.OK(), out.Message)
	assert.Len(t, out.Details, 2)
	data, err := os.ReadFile(filepath.Join(dir, "dataframe_2.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id;age\nb-a;30\n", string(data))

	out = e.Export(ctx, ExportRequest{Target: stage.ExportDatasets, Dir: dir, Archive: true})
	require.True(t, out.OK(), out.Message)
	assert.FileExists(t, filepath.Join(dir, "dataframes.zip"))

	out = e.Export(ctx, ExportRequest{Target: stage.ExportDictionary, Dir: dir})
	require.True(t, out.OK(), out.Message)
	assert.FileExists(t, filepath.Join(dir, "classified_dictionary.csv"))

	out = e.Export(ctx, ExportRequest{Target: stage.ExportDictionary, Dir: dir, Delimiter: ";;"})
	assert.Equal(t, core.KindParameter, out.Kind)
}

func TestEngine_LoadDictionary(t *testing.T) {
	e, _ := newEngine(t, nil)
	ctx := context.Background()
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw.csv")
	require.NoError(t, os.WriteFile(raw, []byte("Variable,Pregunta\nP1,Edad\nP2,Sexo\n"), 0o644))

	out := e.LoadDictionary(ctx, raw, adapter.ParseOptions{}, false)
	assert.Equal(t, core.KindParameter, out.Kind, "raw file is not canonical")
	assert.False(t, e.Store().HasDictionary())

	out = e.LoadDictionary(ctx, raw, adapter.ParseOptions{}, true)
	require.True(t, out.OK(), out.Message)
	dict := e.Store().Dictionary()
	require.NotNil(t, dict)
	assert.Equal(t, []string{core.FieldVariableName, core.FieldQuestion}, dict.ColumnNames())
	assert.Equal(t, "raw.csv", dict.Name())

	out = e.LoadDictionary(ctx, filepath.Join(dir, "absent.csv"), adapter.ParseOptions{}, true)
	assert.Equal(t, core.KindCollaborator, out.Kind)
	assert.Same(t, dict, e.Store().Dictionary())
}

func TestEngine_HistoryAndReset(t *testing.T) {
	e, _ := newEngine(t, nil)
	ctx := context.Background()
	e.Store().Add(idAge(t, "a", 1))
	e.Explore(ctx, "print(1)")
	e.Prune(ctx, core.PruneParams{NaNThreshold: 0.5})

	runs, err := e.History(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, string(stage.Prune), runs[0].Stage)
	assert.Equal(t, e.SessionID(), runs[0].SessionID)

	e.Reset()
	assert.Zero(t, e.Store().Len())
	assert.Nil(t, e.LastResult())

	noHistory := New(Config{})
	runs, err = noHistory.History(ctx, 10, true)
	assert.NoError(t, err)
	assert.Nil(t, runs)
}
