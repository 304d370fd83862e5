package engine

import (
	"fmt"
	"strings"

	"github.com/soyunomas/dupescan/internal/entities"
)

// Definimos las estrategias de conservación disponibles.
// Se resuelven UNA vez al arrancar (ParseStrategy); nada de comparar
// strings repartidas por la lógica de borrado.
type Strategy int

const (
	KeepNewest Strategy = iota // Default
	KeepOldest
	KeepFirst
)

// ParseStrategy convierte el valor del flag --keep en la enumeración.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "newest":
		return KeepNewest, nil
	case "oldest":
		return KeepOldest, nil
	case "first":
		return KeepFirst, nil
	default:
		return 0, fmt.Errorf("estrategia desconocida: %q (newest, oldest, first)", s)
	}
}

func (s Strategy) String() string {
	switch s {
	case KeepNewest:
		return "newest"
	case KeepOldest:
		return "oldest"
	case KeepFirst:
		return "first"
	}
	return "unknown"
}

type sysID struct {
	dev, inode uint64
}

// Select decide qué archivo de un DuplicateSet se conserva (keeper) y
// cuáles sobran. Función pura: aquí no se borra nada, eso es trabajo
// del orquestador.
//
// Reglas:
//   - newest: ModTime más reciente; oldest: más antiguo; first: posición 0.
//   - Empate exacto de fecha: gana el primero en orden de aparición
//     (comparaciones estrictas, determinismo garantizado).
//   - Los hardlinks del keeper (mismo device+inode) no ocupan espacio
//     extra: se separan de las víctimas y jamás se proponen para borrado.
func Select(set *entities.DuplicateSet, strategy Strategy) (keeper *entities.FileInfo, hardlinks, victims []*entities.FileInfo) {
	if len(set.Files) == 0 {
		return nil, nil, nil
	}

	keeper = set.Files[0]
	switch strategy {
	case KeepNewest:
		for _, f := range set.Files[1:] {
			if f.ModTime.After(keeper.ModTime) {
				keeper = f
			}
		}
	case KeepOldest:
		for _, f := range set.Files[1:] {
			if f.ModTime.Before(keeper.ModTime) {
				keeper = f
			}
		}
	case KeepFirst:
		// keeper ya es el primero en orden de aparición
	}

	seen := make(map[sysID]bool)
	keeperID := sysID{keeper.DeviceID, keeper.Inode}
	if keeperID != (sysID{}) {
		seen[keeperID] = true
	}

	for _, f := range set.Files {
		if f == keeper {
			continue
		}
		id := sysID{f.DeviceID, f.Inode}
		if id != (sysID{}) && seen[id] {
			hardlinks = append(hardlinks, f)
			continue
		}
		seen[id] = true
		victims = append(victims, f)
	}
	return keeper, hardlinks, victims
}
