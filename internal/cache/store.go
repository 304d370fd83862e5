package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Entry es la representación en disco de una huella digital (fingerprint).
// La clave del mapa es la ruta absoluta del archivo.
type Entry struct {
	Size  int64  `json:"size"`
	MTime int64  `json:"mtime"` // UnixNano
	Hash  string `json:"hash"`  // digest en hexadecimal
}

// Store mantiene el mapeo ruta -> Entry en memoria y lo persiste como JSON.
// Es el único componente que toca el archivo de caché. Todos los métodos
// son seguros para uso concurrente: los workers de hashing llaman a
// Lookup/Update en paralelo.
type Store struct {
	path string
	log  *slog.Logger

	mu      sync.Mutex
	entries map[string]Entry
	dirty   bool

	hits   atomic.Int64
	misses atomic.Int64
}

// NewStore crea un store vacío asociado al archivo `path`.
// Con path == "" el store funciona solo en memoria (útil en tests).
func NewStore(path string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		path:    path,
		log:     log,
		entries: make(map[string]Entry),
	}
}

// Load lee la caché persistida. Falla en blando: si el archivo no existe,
// está corrupto o no se puede leer, seguimos con la caché vacía.
// Nunca aborta el escaneo.
func (s *Store) Load() {
	if s.path == "" {
		return
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("no se pudo leer la caché, se ignora", "path", s.path, "err", err)
		}
		return
	}

	entries := make(map[string]Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		s.log.Warn("caché corrupta, se parte de cero", "path", s.path, "err", err)
		return
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
}

// Lookup devuelve el digest cacheado solo si tamaño y fecha de modificación
// coinciden con el estado actual del archivo. Cualquier otra cosa es un
// fallo de caché y fuerza el recálculo.
func (s *Store) Lookup(path string, size int64, mtime time.Time) (uint64, bool) {
	s.mu.Lock()
	e, ok := s.entries[path]
	s.mu.Unlock()

	if !ok || e.Size != size || e.MTime != mtime.UnixNano() {
		s.misses.Add(1)
		return 0, false
	}

	digest, err := strconv.ParseUint(e.Hash, 16, 64)
	if err != nil {
		// Entrada malformada: se trata como fallo, no como error fatal.
		s.misses.Add(1)
		return 0, false
	}

	s.hits.Add(1)
	return digest, true
}

// Update registra o sobrescribe una entrada en memoria.
func (s *Store) Update(path string, size int64, mtime time.Time, digest uint64) {
	s.mu.Lock()
	s.entries[path] = Entry{
		Size:  size,
		MTime: mtime.UnixNano(),
		Hash:  strconv.FormatUint(digest, 16),
	}
	s.dirty = true
	s.mu.Unlock()
}

// Persist escribe el mapa completo de vuelta al disco. Best-effort:
// el llamador decide si el error merece algo más que un warning.
func (s *Store) Persist() error {
	if s.path == "" {
		return nil
	}

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	data, err := json.Marshal(s.entries)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("serializando caché: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("escribiendo caché %s: %w", s.path, err)
	}
	return nil
}

// Len devuelve el número de entradas en memoria.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Hits devuelve cuántos Lookup se resolvieron desde la caché.
func (s *Store) Hits() int64 { return s.hits.Load() }

// Misses devuelve cuántos Lookup forzaron recálculo.
func (s *Store) Misses() int64 { return s.misses.Load() }
