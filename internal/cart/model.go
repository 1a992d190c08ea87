package cart

import (
	"strconv"
	"strings"
	"time"
)

// Version tokens for jersey cut.
const (
	VersionFan    = "aficionado"
	VersionPlayer = "jugador"
)

// AdultSizes and KidsSizes are the accepted size tokens.
var (
	AdultSizes = []string{"S", "M", "L", "XL", "XXL", "3XL"}
	KidsSizes  = []string{"16", "18", "20", "22", "24", "26", "28"}
)

var versionLabels = map[string]string{
	VersionFan:    "Versión Aficionado",
	VersionPlayer: "Versión Jugador",
}

var patchLabels = map[string]string{
	"liga":       "Parche LaLiga",
	"champions":  "Parche Champions League",
	"premier":    "Parche Premier League",
	"serie-a":    "Parche Serie A",
	"bundesliga": "Parche Bundesliga",
	"ligue-1":    "Parche Ligue 1",
	"mundial":    "Parche Mundial",
	"nba-75":     "Parche NBA 75 Aniversario",
}

// VersionLabel maps a version token to its display text. Unknown tokens are returned as-is.
func VersionLabel(token string) string {
	if label, ok := versionLabels[token]; ok {
		return label
	}
	return token
}

// PatchLabel maps a patch token to its display text. Unknown tokens are returned as-is.
func PatchLabel(token string) string {
	if label, ok := patchLabels[token]; ok {
		return label
	}
	return token
}

// Line is one personalised jersey entry in a cart.
type Line struct {
	ID           string    `json:"id"`
	ProductID    int       `json:"productId"`
	Qty          int       `json:"qty"`
	Size         string    `json:"size,omitempty"`
	Version      string    `json:"version,omitempty"`
	CustomName   string    `json:"customName,omitempty"`
	CustomNumber *int      `json:"customNumber,omitempty"`
	Patch        string    `json:"patch,omitempty"`
	AddedAt      time.Time `json:"addedAt"`
}

// sameSelection reports whether two lines describe the same jersey configuration.
func (l Line) sameSelection(o Line) bool {
	if l.ProductID != o.ProductID || l.Size != o.Size || l.Version != o.Version ||
		l.CustomName != o.CustomName || l.Patch != o.Patch {
		return false
	}
	if (l.CustomNumber == nil) != (o.CustomNumber == nil) {
		return false
	}
	return l.CustomNumber == nil || *l.CustomNumber == *o.CustomNumber
}

// Descriptor renders the selected options in fixed order, skipping blanks.
func (l Line) Descriptor() string {
	parts := make([]string, 0, 5)
	if l.Size != "" {
		parts = append(parts, l.Size)
	}
	if l.Version != "" {
		parts = append(parts, VersionLabel(l.Version))
	}
	if l.CustomName != "" {
		parts = append(parts, l.CustomName)
	}
	if l.CustomNumber != nil {
		parts = append(parts, strconv.Itoa(*l.CustomNumber))
	}
	if l.Patch != "" {
		parts = append(parts, PatchLabel(l.Patch))
	}
	return strings.Join(parts, " | ")
}

// Cart is an ordered list of lines.
type Cart struct {
	ID        string    `json:"id"`
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TotalQty sums the quantities of every line.
func (c *Cart) TotalQty() int {
	n := 0
	for _, ln := range c.Lines {
		n += ln.Qty
	}
	return n
}

func (c *Cart) clone() *Cart {
	out := &Cart{ID: c.ID, UpdatedAt: c.UpdatedAt, Lines: make([]Line, len(c.Lines))}
	for i, ln := range c.Lines {
		if ln.CustomNumber != nil {
			n := *ln.CustomNumber
			ln.CustomNumber = &n
		}
		out.Lines[i] = ln
	}
	return out
}
