// ellc builds, inspects, refines and compiles models.
//
// The positional argument is either a YAML model description (.yaml/.yml,
// see the modelfile package) or a model archive (.ellm). Typical uses:
//
//	ellc -summary -nodes model.yaml
//	ellc -refine -output refined.ellm model.yaml
//	ellc -compile model.ellm
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/yosshor/ELL/archive"
	"github.com/yosshor/ELL/compiler"
	"github.com/yosshor/ELL/model"
	"github.com/yosshor/ELL/modelfile"
	"github.com/yosshor/ELL/nodes"
)

var (
	flagSummary = flag.Bool("summary", false, "Display a summary of the model: node counts, state and port sizes.")
	flagNodes   = flag.Bool("nodes", false, "List the model's nodes and their wiring, one line per node.")
	flagRefine  = flag.Bool("refine", false, "Lower composite nodes into primitive subgraphs before the other actions.")
	flagCompile = flag.Bool("compile", false, "Compile the model and print the program listing. Implies -refine.")
	flagOutput  = flag.String("output", "", "Write the (possibly refined) model as an archive to this path.")
	flagHalf    = flag.Bool("half", false, "Store float payloads of the output archive in 16-bit precision.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		klog.Errorf("Expected exactly one model file (.yaml or .ellm). See 'ellc -help'.")
		os.Exit(1)
	}
	m := loadModel(args[0])

	if *flagRefine || *flagCompile {
		m = must.M1(model.RefineModel(m))
	}
	if *flagSummary {
		summary(args[0], m)
	}
	if *flagNodes {
		fmt.Print(m.String())
	}
	if *flagCompile {
		program := must.M1(compiler.Compile(m))
		fmt.Print(program.Listing())
	}
	if *flagOutput != "" {
		writeArchive(*flagOutput, m)
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

func writeArchive(path string, m *model.Model) {
	var opts []archive.WriteOption
	if *flagHalf {
		opts = append(opts, archive.WithHalfPrecision())
	}
	f := must.M1(os.Create(path))
	must.M(archive.Write(f, m, opts...))
	must.M(f.Close())
}

var (
	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable() *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			switch {
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

func summary(path string, m *model.Model) {
	fmt.Println(titleStyle.Render("Summary"))
	table := newPlainTable()
	table.Row("file", path)
	table.Row("model", m.Name())
	table.Row("id", m.ID().String())
	table.Row("# nodes", humanize.Comma(int64(m.NumNodes())))

	var stateful, refinable int
	var elements int
	var inputNames, outputNames []string
	for _, n := range m.Nodes() {
		if n.HasState() {
			stateful++
		}
		if _, ok := n.(model.Refiner); ok {
			refinable++
		}
		for _, p := range n.Outputs() {
			elements += p.Size()
		}
		if in, ok := n.(nodes.ModelInput); ok {
			inputNames = append(inputNames, fmt.Sprintf("%s (%d)", in.Name(), in.Output().Size()))
		}
		if out, ok := n.(nodes.ModelOutput); ok {
			outputNames = append(outputNames, fmt.Sprintf("%s (%d)", out.Name(), out.Output().Size()))
		}
	}
	table.Row("# stateful nodes", humanize.Comma(int64(stateful)))
	table.Row("# composite nodes", humanize.Comma(int64(refinable)))
	table.Row("# port elements", humanize.Comma(int64(elements)))
	table.Row("inputs", strings.Join(inputNames, ", "))
	table.Row("outputs", strings.Join(outputNames, ", "))
	fmt.Println(table.Render())
}
