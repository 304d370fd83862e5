package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/soyunomas/dupescan/internal/entities"
	"github.com/soyunomas/dupescan/internal/hasher"
	"github.com/soyunomas/dupescan/internal/scanner"
)

// FingerprintCache es el contrato mínimo que el motor necesita de la caché.
// Se pasa por referencia explícita (nada de estado global) para poder
// sustituirla por un fake en los tests. nil desactiva la caché.
type FingerprintCache interface {
	Lookup(path string, size int64, mtime time.Time) (uint64, bool)
	Update(path string, size int64, mtime time.Time, digest uint64)
}

type Options struct {
	Recursive     bool
	MinSize       int64
	MaxSize       int64
	Extensions    []string
	IncludeHidden bool
	SkipNames     []string // archivos que el scanner nunca debe emitir
	UseHash       bool     // false => la partición por tamaño es el resultado final
	SizeOnly      bool     // true => ídem, explícitamente pedido por el usuario
	Workers       int      // 0 => NumCPU
	Quiet         bool     // sin ticks de progreso por stdout
}

// FileFailure registra un archivo que no se pudo leer durante el hashing.
// No invalida el resto de su grupo ni aborta el escaneo.
type FileFailure struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

type Result struct {
	Sets           []*entities.DuplicateSet
	TotalScanned   int64
	CandidateCount int64 // archivos que sobrevivieron a la fase 1
	CacheHits      int64
	CacheMisses    int64
	WastedBytes    int64
	Failures       []FileFailure
	Duration       time.Duration
}

// Runner ejecuta el algoritmo de detección en dos fases:
// partición por tamaño y, para los grupos supervivientes, partición por hash.
type Runner struct {
	opts  Options
	cache FingerprintCache
	log   *slog.Logger
}

func New(opts Options, fpCache FingerprintCache, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Runner{opts: opts, cache: fpCache, log: log}
}

func (r *Runner) Run(ctx context.Context, rootDir string) (*Result, error) {
	start := time.Now()

	// --- FASE 1: PARTICIÓN POR TAMAÑO ---
	// Consumimos el stream del scanner de forma incremental: un solo paso,
	// sin materializar el árbol entero.
	sc := scanner.New(scanner.Config{
		Recursive:     r.opts.Recursive,
		MinSize:       r.opts.MinSize,
		MaxSize:       r.opts.MaxSize,
		Extensions:    r.opts.Extensions,
		IncludeHidden: r.opts.IncludeHidden,
		SkipNames:     r.opts.SkipNames,
	}, r.log)

	files, err := sc.Scan(ctx, rootDir)
	if err != nil {
		return nil, fmt.Errorf("fallo en scanner: %w", err)
	}

	r.progressf("🔍 Fase 1: Escaneando y agrupando por tamaño...\n")

	res := &Result{}
	bySize := make(map[int64][]*entities.FileInfo)
	var sizeOrder []int64 // orden de primera aparición de cada tamaño
	for f := range files {
		res.TotalScanned++
		if _, seen := bySize[f.Size]; !seen {
			sizeOrder = append(sizeOrder, f.Size)
		}
		bySize[f.Size] = append(bySize[f.Size], f)
	}

	// Podamos los grupos unitarios: un tamaño único no puede tener duplicados.
	// Este es el gran ahorro de I/O de todo el algoritmo.
	var candidates int64
	for size, group := range bySize {
		if len(group) < 2 {
			delete(bySize, size)
			continue
		}
		candidates += int64(len(group))
	}
	res.CandidateCount = candidates
	r.progressf("   -> %d archivos encontrados. %d candidatos por tamaño.\n", res.TotalScanned, candidates)

	// --- FASE 2: PARTICIÓN POR HASH ---
	if r.opts.SizeOnly || !r.opts.UseHash {
		// Modo size-only: la partición por tamaño ES el resultado.
		// Falsos positivos posibles y aceptados explícitamente.
		r.progressf("⚖️  Modo size-only: se omite la verificación de contenido.\n")
		for _, size := range sizeOrder {
			group, ok := bySize[size]
			if !ok {
				continue
			}
			set := &entities.DuplicateSet{Size: size}
			for _, f := range group {
				set.Add(f)
			}
			res.Sets = append(res.Sets, set)
		}
	} else {
		r.progressf("🔍 Fase 2: Verificando contenido (hash xxhash64)...\n")
		digests := r.processHashes(ctx, bySize, res)
		r.progressf("\n   -> Hashing terminado.\n")

		for _, size := range sizeOrder {
			group, ok := bySize[size]
			if !ok {
				continue
			}
			res.Sets = append(res.Sets, partitionByDigest(size, group, digests)...)
		}
	}

	for _, set := range res.Sets {
		res.WastedBytes += set.WastedBytes()
	}

	res.Duration = time.Since(start)
	return res, nil
}

// processHashes reparte los candidatos entre workers y devuelve el mapa
// ruta -> digest de todo lo que se pudo calcular. Los archivos de 0 bytes
// no se leen: comparten EmptyDigest por definición.
func (r *Runner) processHashes(ctx context.Context, bySize map[int64][]*entities.FileInfo, res *Result) map[string]uint64 {
	type result struct {
		path   string
		digest uint64
		cached bool
		err    error
	}

	var pending []*entities.FileInfo
	digests := make(map[string]uint64)
	for size, group := range bySize {
		if size == 0 {
			// Atajo: todos los archivos vacíos son idénticos entre sí.
			for _, f := range group {
				digests[f.Path] = hasher.EmptyDigest
			}
			continue
		}
		pending = append(pending, group...)
	}

	jobs := make(chan *entities.FileInfo, len(pending))
	results := make(chan result, len(pending))

	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				// Cancelación: se drena la cola sin calcular nada más.
				// Lo ya calculado sigue valiendo para el informe parcial.
				if ctx.Err() != nil {
					continue
				}
				if r.cache != nil {
					if d, ok := r.cache.Lookup(f.Path, f.Size, f.ModTime); ok {
						results <- result{path: f.Path, digest: d, cached: true}
						continue
					}
				}
				d, err := hasher.HashFile(f.Path)
				if err == nil && r.cache != nil {
					r.cache.Update(f.Path, f.Size, f.ModTime, d)
				}
				results <- result{path: f.Path, digest: d, err: err}
			}
		}()
	}

	// Llenamos la cola; si llega la cancelación dejamos de emitir trabajos
	// y los sets se construyen con lo calculado hasta el momento.
	// El canal va con buffer, así que la comprobación tiene que ser
	// explícita: un select con ambos casos listos seguiría encolando.
	for _, f := range pending {
		if ctx.Err() != nil {
			break
		}
		jobs <- f
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	processed := 0
	for resItem := range results {
		processed++
		if processed%50 == 0 { // Menos print para no saturar stdout
			r.progressf("#")
		}

		if resItem.err != nil {
			// ReadFailure local: el archivo cae de su grupo, el resto sigue.
			res.Failures = append(res.Failures, FileFailure{Path: resItem.path, Err: resItem.err.Error()})
			r.log.Warn("archivo ilegible, excluido", "path", resItem.path, "err", resItem.err)
			continue
		}
		if resItem.cached {
			res.CacheHits++
		} else {
			res.CacheMisses++
		}
		digests[resItem.path] = resItem.digest
	}
	return digests
}

// partitionByDigest sub-particiona un grupo de tamaño por digest exacto,
// conservando el orden de aparición. Solo emite sub-grupos con 2+ miembros.
func partitionByDigest(size int64, group []*entities.FileInfo, digests map[string]uint64) []*entities.DuplicateSet {
	byDigest := make(map[uint64]*entities.DuplicateSet)
	var order []uint64
	for _, f := range group {
		d, ok := digests[f.Path]
		if !ok {
			continue // ilegible o cancelado: fuera de juego
		}
		f.Hash = d
		set, exists := byDigest[d]
		if !exists {
			set = &entities.DuplicateSet{Size: size, Hash: d}
			byDigest[d] = set
			order = append(order, d)
		}
		set.Add(f)
	}

	var sets []*entities.DuplicateSet
	for _, d := range order {
		if set := byDigest[d]; set.Count >= 2 {
			sets = append(sets, set)
		}
	}
	return sets
}

// progressf escribe avances legibles para humanos salvo en modo silencioso.
func (r *Runner) progressf(format string, args ...any) {
	if r.opts.Quiet {
		return
	}
	fmt.Printf(format, args...)
}
