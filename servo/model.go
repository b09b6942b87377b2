package servo

import (
	"fmt"
	"strings"
)

// Model identifies a WHJ joint servo model. The numeric value matches the
// model designation (WHJ10 = 10).
type Model uint8

const (
	WHJ10 Model = 10
	WHJ30 Model = 30
	WHJ60 Model = 60
)

func (m Model) String() string {
	switch m {
	case WHJ10:
		return "WHJ10"
	case WHJ30:
		return "WHJ30"
	case WHJ60:
		return "WHJ60"
	default:
		return fmt.Sprintf("model(%d)", uint8(m))
	}
}

// ParseModel parses a model name such as "WHJ10" (case-insensitive).
func ParseModel(s string) (Model, error) {
	switch strings.ToUpper(s) {
	case "WHJ10":
		return WHJ10, nil
	case "WHJ30":
		return WHJ30, nil
	case "WHJ60":
		return WHJ60, nil
	default:
		return 0, fmt.Errorf("servo: unknown motor model %q", s)
	}
}

// CurrentScale returns the current measurement scale in mA per count.
// The WHJ60 reports current in 2 mA steps; smaller models use 1 mA.
func (m Model) CurrentScale() float64 {
	if m == WHJ60 {
		return 2.0
	}
	return 1.0
}
