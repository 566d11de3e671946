package pricing

import "math"

// Bands is the derived estimate shown to visitors. Amounts are whole US dollars.
type Bands struct {
	Conservative   float64  `json:"conservative"`
	Likely         float64  `json:"likely"`
	Premium        float64  `json:"premium"`
	BreakdownLines []string `json:"breakdownLines,omitempty"`
}

// Estimate computes the cost bands for the selected project and its scope.
// A nil Details means no project has been chosen yet and yields nil.
func Estimate(details Details) *Bands {
	if details == nil {
		return nil
	}

	b := details.estimate()
	b.Conservative = math.Round(b.Conservative)
	b.Likely = math.Round(b.Likely)
	b.Premium = math.Round(b.Premium)
	b.BreakdownLines = append(b.BreakdownLines, "Estimated range: "+formatUSD(b.Conservative)+" - "+formatUSD(b.Premium))
	return &b
}

// rates holds a conservative, likely and premium value, always ascending.
type rates [3]float64

func (r rates) add(o rates) rates {
	return rates{r[0] + o[0], r[1] + o[1], r[2] + o[2]}
}

func (r rates) scale(f float64) rates {
	return rates{r[0] * f, r[1] * f, r[2] * f}
}

func (r rates) bands() Bands {
	return Bands{Conservative: r[0], Likely: r[1], Premium: r[2]}
}

// quantityOr returns v, or fallback when v was not supplied.
func quantityOr(v, fallback float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
