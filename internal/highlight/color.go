package highlight

import (
	"fmt"

	"github.com/sells-group/termsheet-cli/internal/model"
)

var (
	lowColor  = model.RGB{R: 1, G: 1, B: 0.7}
	highColor = model.RGB{R: 1, G: 0.3, B: 0.05}
)

// SeverityColor interpolates from pale yellow at 1 to deep red at 10.
func SeverityColor(sev int) model.RGB {
	t := float64(model.ClampSeverity(sev)-1) / 9
	return model.RGB{
		R: lerp(lowColor.R, highColor.R, t),
		G: lerp(lowColor.G, highColor.G, t),
		B: lerp(lowColor.B, highColor.B, t),
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Comment formats the popup text attached to a highlight.
func Comment(d model.DiscrepancyEntry) string {
	return fmt.Sprintf("Discrepancy: %s\nTermsheet field: %s\nTermsheet value: %s\nDocument value: %s\nSeverity: %d/10",
		d.Explanation,
		d.RelatedField,
		d.ReferenceValue,
		d.DocumentValue,
		model.ClampSeverity(int(d.Severity)),
	)
}
