package train

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/bottlenet-ml/bottlenet/internal/runlog"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
	bestStyle   = cellStyle.Foreground(lipgloss.Color("#04B575"))
)

// Report renders the per-epoch metrics of a run as a table, highlighting
// the epoch with the best test accuracy.
func Report(title string, epochs []runlog.Epoch) string {
	best := -1
	for i, e := range epochs {
		if best < 0 || e.TestAccuracy > epochs[best].TestAccuracy {
			best = i
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("epoch", "lr", "train loss", "test loss", "accuracy", "time").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == best:
				return bestStyle
			default:
				return cellStyle
			}
		})

	for _, e := range epochs {
		t.Row(
			fmt.Sprintf("%d", e.Epoch),
			fmt.Sprintf("%.4g", e.LR),
			fmt.Sprintf("%.4f", e.TrainLoss),
			fmt.Sprintf("%.4f", e.TestLoss),
			fmt.Sprintf("%.2f%%", e.TestAccuracy*100),
			e.Duration.Round(time.Millisecond).String(),
		)
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n")
	sb.WriteString(t.String())
	return sb.String()
}
