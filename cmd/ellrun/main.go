// ellrun feeds a sequence of input rows through a model and writes the
// resulting output rows, either interpreted (the graph walk) or compiled
// (the lowered program). Stateful models advance their state row by row, so
// a CSV of feature rows drives a full recurrent sequence.
//
// Input CSV columns map onto the model's input ports in declaration order,
// each port consuming as many columns as it has elements. A header row is
// detected and skipped. Typical use:
//
//	ellrun -data features.csv -compiled model.ellm
package main

import (
	"encoding/csv"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/yosshor/ELL/archive"
	"github.com/yosshor/ELL/compiler"
	"github.com/yosshor/ELL/model"
	"github.com/yosshor/ELL/modelfile"
	"github.com/yosshor/ELL/nodes"
)

var (
	flagData     = flag.String("data", "", "CSV file with one row of input values per evaluation. Required.")
	flagOutput   = flag.String("output", "", "Write output rows as CSV to this path; defaults to stdout.")
	flagCompiled = flag.Bool("compiled", false, "Refine and compile the model, then run the compiled program instead of the interpreter.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 || *flagData == "" {
		klog.Errorf("Expected a model file (.yaml or .ellm) and -data. See 'ellrun -help'.")
		os.Exit(1)
	}
	m := loadModel(args[0])
	rows := loadRows(*flagData)

	out := os.Stdout
	if *flagOutput != "" {
		out = must.M1(os.Create(*flagOutput))
		defer func() { must.M(out.Close()) }()
	}
	writer := csv.NewWriter(out)
	defer writer.Flush()

	showProgress := *flagOutput != ""
	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.Default(int64(len(rows)), "running")
	}
	var next func([]float64) []float64
	if *flagCompiled {
		next = compiledRunner(m)
	} else {
		next = interpretedRunner(m)
	}
	for _, row := range rows {
		outputs := next(row)
		record := make([]string, len(outputs))
		for jj, v := range outputs {
			record[jj] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		must.M(writer.Write(record))
		if showProgress {
			must.M(bar.Add(1))
		}
	}
}

func loadModel(path string) *model.Model {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return must.M1(modelfile.Load(path))
	default:
		f := must.M1(os.Open(path))
		defer func() { must.M(f.Close()) }()
		return must.M1(archive.Read(f))
	}
}

// loadRows parses the data CSV into float64 rows, skipping a header row if
// the first cell does not parse as a number.
func loadRows(path string) [][]float64 {
	f := must.M1(os.Open(path))
	defer func() { must.M(f.Close()) }()
	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records := must.M1(reader.ReadAll())
	if len(records) > 0 {
		if _, err := strconv.ParseFloat(records[0][0], 64); err != nil {
			records = records[1:]
		}
	}
	rows := make([][]float64, len(records))
	for ii, record := range records {
		row := make([]float64, len(record))
		for jj, cell := range record {
			row[jj] = must.M1(strconv.ParseFloat(cell, 64))
		}
		rows[ii] = row
	}
	return rows
}

// interpretedRunner drives the model through the graph walk, feeding input
// nodes and collecting output nodes in declaration order.
func interpretedRunner(m *model.Model) func([]float64) []float64 {
	var inputs []nodes.ModelInput
	var outputs []nodes.ModelOutput
	for _, n := range m.Nodes() {
		if in, ok := n.(nodes.ModelInput); ok {
			inputs = append(inputs, in)
		}
		if out, ok := n.(nodes.ModelOutput); ok {
			outputs = append(outputs, out)
		}
	}
	return func(row []float64) []float64 {
		offset := 0
		for _, in := range inputs {
			size := in.Output().Size()
			if offset+size > len(row) {
				klog.Exitf("Row has %d columns; model inputs need %d.", len(row), inputColumns(m))
			}
			in.SetFromFloat64(row[offset : offset+size])
			offset += size
		}
		must.M(m.Compute())
		var result []float64
		for _, out := range outputs {
			result = append(result, out.Float64Value()...)
		}
		return result
	}
}

// compiledRunner refines and compiles the model once and drives the program.
func compiledRunner(m *model.Model) func([]float64) []float64 {
	refined := must.M1(model.RefineModel(m))
	program := must.M1(compiler.Compile(refined))
	klog.V(1).Infof("compiled %q: %d instructions, %d state elements",
		program.Name(), program.NumInstructions(), program.StateSize())
	specs := program.Inputs()
	outSpecs := program.Outputs()
	outBufs := make([][]float64, len(outSpecs))
	for ii, spec := range outSpecs {
		outBufs[ii] = make([]float64, spec.Size)
	}
	return func(row []float64) []float64 {
		inBufs := make([][]float64, len(specs))
		offset := 0
		for ii, spec := range specs {
			if offset+spec.Size > len(row) {
				klog.Exitf("Row has %d columns; program inputs need %d.", len(row), inputColumns(m))
			}
			inBufs[ii] = row[offset : offset+spec.Size]
			offset += spec.Size
		}
		must.M(program.Run(inBufs, outBufs))
		var result []float64
		for _, buf := range outBufs {
			result = append(result, buf...)
		}
		return result
	}
}

func inputColumns(m *model.Model) int {
	total := 0
	for _, n := range m.Nodes() {
		if in, ok := n.(nodes.ModelInput); ok {
			total += in.Output().Size()
		}
	}
	return total
}
