package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/soyunomas/dupescan/internal/entities"
)

// SortKey controla el orden de presentación de los conjuntos en el informe.
type SortKey int

const (
	SortBySize SortKey = iota // Default: los grupos más pesados primero
	SortByCount
)

// ParseSortKey convierte el valor del flag --sort en la enumeración.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(s) {
	case "size":
		return SortBySize, nil
	case "count":
		return SortByCount, nil
	default:
		return 0, fmt.Errorf("criterio de orden desconocido: %q (size, count)", s)
	}
}

// SortSets ordena los conjuntos de mayor a menor según la clave elegida.
// Los empates se resuelven con la otra clave y, en última instancia,
// por la ruta del primer archivo: determinismo absoluto.
func SortSets(sets []*entities.DuplicateSet, key SortKey) {
	sort.Slice(sets, func(i, j int) bool {
		s1, s2 := sets[i], sets[j]

		switch key {
		case SortBySize:
			if s1.WastedBytes() != s2.WastedBytes() {
				return s1.WastedBytes() > s2.WastedBytes()
			}
		case SortByCount:
			if s1.Count != s2.Count {
				return s1.Count > s2.Count
			}
		}

		// --- CRITERIOS DE DESEMPATE ---
		if s1.Size != s2.Size {
			return s1.Size > s2.Size
		}
		if s1.Count != s2.Count {
			return s1.Count > s2.Count
		}
		return s1.Files[0].Path < s2.Files[0].Path
	})
}
