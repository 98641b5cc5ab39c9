package balance

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteMatrix prints the matrix as an aligned table of percentages.
func WriteMatrix(w io.Writer, matrix Matrix) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "atk \\ def\t%s\t\n", strings.Join(matrix.Types, "\t"))
	for i, attacker_type := range matrix.Types {
		cells := make([]string, len(matrix.Types))
		for j := range matrix.Types {
			cells[j] = fmt.Sprintf("%.1f%%", matrix.Rates[i][j]*100)
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", attacker_type, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func WriteCurve(w io.Writer, curve []CurvePoint) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "experience\twin rate\trounds\t")
	for _, point := range curve {
		fmt.Fprintf(tw, "%d\t%.1f%%\t%.2f\t\n", point.Experience, point.WinRate*100, point.MeanRounds)
	}
	return tw.Flush()
}
