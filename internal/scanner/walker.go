package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/soyunomas/dupescan/internal/entities"
)

// Config define las reglas para el escaneo.
type Config struct {
	Recursive     bool
	MinSize       int64    // Tamaño mínimo en bytes para considerar
	MaxSize       int64    // Tamaño máximo; 0 = sin límite superior
	Extensions    []string // Lista blanca, normalizada (minúsculas, con punto)
	IncludeHidden bool     // Incluir archivos y carpetas ocultos
	SkipNames     []string // Nombres que nunca se emiten ni se recorren (caché, papelera)
}

// FileScanner encapsula la lógica de recorrido del sistema de archivos.
// Produce una secuencia perezosa de FileInfo por un canal: el consumidor
// puede agrupar de forma incremental sin materializar el árbol completo.
type FileScanner struct {
	cfg     Config
	extMap  map[string]struct{} // Optimización O(1)
	skipMap map[string]struct{}
	log     *slog.Logger
}

// New crea una nueva instancia del escáner con configuración.
func New(cfg Config, log *slog.Logger) *FileScanner {
	if log == nil {
		log = slog.Default()
	}

	// Pre-procesamos los filtros a mapas para búsquedas instantáneas
	extMap := make(map[string]struct{}, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		extMap[e] = struct{}{}
	}
	skipMap := make(map[string]struct{}, len(cfg.SkipNames))
	for _, n := range cfg.SkipNames {
		skipMap[n] = struct{}{}
	}

	return &FileScanner{
		cfg:     cfg,
		extMap:  extMap,
		skipMap: skipMap,
		log:     log,
	}
}

// NormalizeExtensions convierte la lista separada por comas del usuario
// ("JPG, .png") al formato interno: minúsculas y con punto inicial.
func NormalizeExtensions(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// Scan valida rootDir y devuelve un canal con los archivos candidatos.
// Un rootDir inválido es el único error fatal de esta fase; los fallos
// por archivo se registran y se omiten sin interrumpir el recorrido.
// Cancelar el contexto detiene la emisión y cierra el canal.
func (s *FileScanner) Scan(ctx context.Context, rootDir string) (<-chan *entities.FileInfo, error) {
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("directorio inaccesible %s: %w", rootDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s no es un directorio", rootDir)
	}

	out := make(chan *entities.FileInfo, 256)
	go func() {
		defer close(out)
		if s.cfg.Recursive {
			s.walk(ctx, rootDir, out)
		} else {
			s.listFlat(ctx, rootDir, out)
		}
	}()
	return out, nil
}

// walk recorre el árbol completo con WalkDir.
func (s *FileScanner) walk(ctx context.Context, rootDir string, out chan<- *entities.FileInfo) {
	_ = filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return filepath.SkipAll
		}

		// 1. Manejo de errores de acceso (permisos, etc)
		if err != nil {
			s.log.Debug("entrada omitida", "path", path, "err", err)
			return nil
		}

		// 2. Directorios: podamos los excluidos (papelera, caché) y los
		// ocultos salvo que se pidan
		if d.IsDir() {
			if path != rootDir {
				if _, ok := s.skipMap[d.Name()]; ok {
					return filepath.SkipDir
				}
				if !s.cfg.IncludeHidden && isHidden(d.Name()) {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if fi := s.inspect(path, d); fi != nil {
			select {
			case out <- fi:
			case <-ctx.Done():
				return filepath.SkipAll
			}
		}
		return nil
	})
}

// listFlat procesa solo el primer nivel del directorio.
func (s *FileScanner) listFlat(ctx context.Context, rootDir string, out chan<- *entities.FileInfo) {
	dirEntries, err := os.ReadDir(rootDir)
	if err != nil {
		s.log.Debug("no se pudo listar el directorio", "path", rootDir, "err", err)
		return
	}
	for _, d := range dirEntries {
		if ctx.Err() != nil {
			return
		}
		if d.IsDir() {
			continue
		}
		if fi := s.inspect(filepath.Join(rootDir, d.Name()), d); fi != nil {
			select {
			case out <- fi:
			case <-ctx.Done():
				return
			}
		}
	}
}

// inspect aplica los filtros y construye la entidad. Devuelve nil si el
// archivo no pasa los filtros o no se puede inspeccionar.
func (s *FileScanner) inspect(path string, d fs.DirEntry) *entities.FileInfo {
	name := d.Name()

	if _, ok := s.skipMap[name]; ok {
		return nil
	}
	if !s.cfg.IncludeHidden && isHidden(name) {
		return nil
	}
	// Solo archivos regulares: symlinks, sockets y demás no tienen
	// contenido comparable.
	if !d.Type().IsRegular() {
		return nil
	}

	// Filtro de extensión (lista blanca opcional)
	ext := strings.ToLower(filepath.Ext(name))
	if len(s.extMap) > 0 {
		if _, ok := s.extMap[ext]; !ok {
			return nil
		}
	}

	info, err := d.Info()
	if err != nil {
		s.log.Debug("stat fallido", "path", path, "err", err)
		return nil
	}

	// Filtro de tamaño
	size := info.Size()
	if size < s.cfg.MinSize {
		return nil
	}
	if s.cfg.MaxSize > 0 && size > s.cfg.MaxSize {
		return nil
	}

	devID, inode := getSysInfo(info)
	return &entities.FileInfo{
		Path:     path,
		Size:     size,
		Ext:      ext,
		ModTime:  info.ModTime(),
		DeviceID: devID,
		Inode:    inode,
		// Hash se calculará en la fase 2 (si procede)
	}
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// getSysInfo extrae DeviceID e Inode de forma "segura".
func getSysInfo(info fs.FileInfo) (uint64, uint64) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0
	}
	return uint64(stat.Dev), uint64(stat.Ino)
}
