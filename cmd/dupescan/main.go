package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/soyunomas/dupescan/internal/cache"
	"github.com/soyunomas/dupescan/internal/config"
	"github.com/soyunomas/dupescan/internal/engine"
	"github.com/soyunomas/dupescan/internal/entities"
	"github.com/soyunomas/dupescan/internal/scanner"
	"github.com/soyunomas/dupescan/internal/utils"
)

// --- ESTRUCTURAS PARA EL REPORTE FINAL ---

type Report struct {
	Summary  Summary              `json:"summary"`
	Groups   []GroupResult        `json:"groups"`
	Failures []engine.FileFailure `json:"failures,omitempty"`
	Metadata Metadata             `json:"metadata"`
}

type Metadata struct {
	ScannedPath string    `json:"scanned_path"`
	Strategy    string    `json:"strategy"`
	SizeOnly    bool      `json:"size_only"`
	Timestamp   time.Time `json:"timestamp"`
	Duration    string    `json:"duration_human"`
}

type Summary struct {
	TotalFilesScanned int64  `json:"total_files_scanned"`
	TotalSets         int64  `json:"total_duplicate_sets"`
	TotalDuplicates   int64  `json:"total_duplicates"`
	TotalHardLinks    int64  `json:"total_hard_links"`
	BytesSaved        int64  `json:"bytes_saved"`
	BytesSavedHuman   string `json:"bytes_saved_human"`
	CacheHits         int64  `json:"cache_hits"`
	CacheMisses       int64  `json:"cache_misses"`
}

type GroupResult struct {
	Hash      uint64             `json:"hash"`
	Size      int64              `json:"file_size"`
	Keeper    *entities.FileInfo `json:"keeper"`
	Victims   []Victim           `json:"victims"`
	HardLinks []string           `json:"hardlinks,omitempty"`
}

type Victim struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// trashDirName es la papelera de --trash. Se excluye del escaneo: si no,
// una segunda pasada recursiva volvería a contar lo ya apartado.
const trashDirName = "TRASH_BIN"

// --- FLAGS ---

var flags struct {
	recursive     bool
	deleteMode    bool
	trashMode     bool
	dryRun        bool
	minSize       int64
	maxSize       int64
	extensions    string
	includeHidden bool
	noHash        bool
	sizeOnly      bool
	noCache       bool
	sortKey       string
	keep          string
	jsonOut       bool
	output        string
	workers       int
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "dupescan [directorio]",
		Short:        "Localiza (y opcionalmente elimina) archivos duplicados",
		Long:         "dupescan agrupa archivos por tamaño y verifica su contenido con xxhash64,\nreutilizando una caché de huellas entre ejecuciones para minimizar I/O.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         run,
	}

	f := rootCmd.Flags()
	f.BoolVarP(&flags.recursive, "recursive", "r", false, "Escanear subdirectorios recursivamente")
	f.BoolVarP(&flags.deleteMode, "delete", "d", false, "⚠️  Borrar los duplicados sobrantes")
	f.BoolVar(&flags.trashMode, "trash", false, "♻️  Mover los sobrantes a ./TRASH_BIN en vez de borrar")
	f.BoolVar(&flags.dryRun, "dry-run", false, "Mostrar qué se borraría sin tocar nada")
	f.Int64Var(&flags.minSize, "min-size", 0, "Tamaño mínimo en bytes")
	f.Int64Var(&flags.maxSize, "max-size", 0, "Tamaño máximo en bytes (0 = sin límite)")
	f.StringVarP(&flags.extensions, "extensions", "e", "", "Lista de extensiones separadas por comas (ej: .jpg,.png)")
	f.BoolVarP(&flags.includeHidden, "include-hidden", "a", false, "Incluir archivos y carpetas ocultos")
	f.BoolVar(&flags.noHash, "no-hash", false, "No verificar contenido (más rápido, menos preciso)")
	f.BoolVar(&flags.sizeOnly, "size-only", false, "Comparar solo por tamaño")
	f.BoolVar(&flags.noCache, "no-cache", false, "No usar ni crear la caché de huellas")
	f.StringVarP(&flags.sortKey, "sort", "s", "size", "Orden del informe: size | count")
	f.StringVar(&flags.keep, "keep", "newest", "Qué copia conservar: newest | oldest | first")
	f.BoolVar(&flags.jsonOut, "json", false, "Salida en formato JSON a stdout")
	f.StringVar(&flags.output, "output", "", "Genera un script .sh de revisión en vez de actuar")
	f.IntVar(&flags.workers, "workers", 0, "Workers de hashing (0 = nº de CPUs)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuración inválida: %w", err)
	}
	log := config.SetupLogger(cfg.LogLevel)

	rootDir := "."
	if len(args) == 1 {
		rootDir = args[0]
	}

	if err := validateActionFlags(flags.deleteMode, flags.trashMode, flags.jsonOut, flags.output); err != nil {
		return err
	}

	strategy, err := engine.ParseStrategy(flags.keep)
	if err != nil {
		return err
	}
	sortKey, err := engine.ParseSortKey(flags.sortKey)
	if err != nil {
		return err
	}

	workers := flags.workers
	if workers == 0 {
		workers = cfg.Workers
	}

	// Caché de huellas: vive como archivo oculto en la raíz escaneada.
	var store *cache.Store
	var fpCache engine.FingerprintCache
	if !flags.noCache {
		store = cache.NewStore(filepath.Join(rootDir, cfg.CacheFile), log)
		store.Load()
		fpCache = store
	}

	runner := engine.New(engine.Options{
		Recursive:     flags.recursive,
		MinSize:       flags.minSize,
		MaxSize:       flags.maxSize,
		Extensions:    scanner.NormalizeExtensions(flags.extensions),
		IncludeHidden: flags.includeHidden,
		SkipNames:     []string{filepath.Base(cfg.CacheFile), trashDirName},
		UseHash:       !flags.noHash,
		SizeOnly:      flags.sizeOnly,
		Workers:       workers,
		Quiet:         flags.jsonOut,
	}, fpCache, log)

	if !flags.jsonOut {
		fmt.Printf("🚀 dupescan - Escaneando: %s\n", rootDir)
		fmt.Printf("⚖️  Estrategia: Conservar %s\n", strings.ToUpper(strategy.String()))
		fmt.Println("------------------------------------------------")
	}

	// Ctrl-C detiene la emisión de trabajos y reporta lo completado.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := runner.Run(ctx, rootDir)
	if err != nil {
		die(err, flags.jsonOut)
	}

	// La caché se escribe pase lo que pase con el resto del informe.
	if store != nil {
		if err := store.Persist(); err != nil {
			log.Warn("no se pudo persistir la caché", "err", err)
		}
	}

	engine.SortSets(res.Sets, sortKey)
	report := generateReport(res, rootDir, strategy, flags.sizeOnly || flags.noHash)

	if flags.jsonOut {
		printJSON(report)
		return nil
	}

	if flags.output != "" {
		if err := generateShellScript(report, flags.output); err != nil {
			return fmt.Errorf("generando script: %w", err)
		}
		fmt.Printf("\n📄 Script generado: %s\n", flags.output)
		return nil
	}

	processResults(report, flags.deleteMode && !flags.dryRun, flags.trashMode && !flags.dryRun)
	return nil
}

// validateActionFlags impide combinaciones ambiguas: solo UNA acción a la
// vez, y --json no convive con --output (los dos deciden la salida).
func validateActionFlags(deleteMode, trashMode, jsonOut bool, output string) error {
	actionCount := 0
	if deleteMode {
		actionCount++
	}
	if trashMode {
		actionCount++
	}
	if output != "" {
		actionCount++
	}
	if actionCount > 1 {
		return fmt.Errorf("solo puedes elegir UNA acción: --delete, --trash o --output")
	}
	if jsonOut && output != "" {
		return fmt.Errorf("--json y --output son incompatibles: elige un solo formato de salida")
	}
	return nil
}

// processResults maneja la visualización y las acciones inmediatas (delete/trash)
func processResults(r Report, deleteMode, trashMode bool) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if len(r.Groups) == 0 {
		fmt.Println("✅ ¡Limpio! No se encontraron duplicados.")
		reportFailures(r, yellow)
		return
	}

	// Preparar carpeta de basura si es necesario
	trashDir := trashDirName
	if trashMode {
		if err := os.MkdirAll(trashDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "❌ Error creando carpeta de basura: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("♻️  Modo Papelera: Los archivos se moverán a ./%s/\n", trashDir)
	} else if deleteMode {
		fmt.Println("🔥 MODO DESTRUCTIVO: Los archivos se borrarán para siempre.")
	}

	if r.Metadata.SizeOnly {
		fmt.Println(yellow("⚠️  Modo size-only: coincidencia por tamaño, SIN verificar contenido."))
	}

	fmt.Println("🔴 DUPLICADOS ENCONTRADOS:")
	actionCount := 0
	var freedBytes int64

	for _, g := range r.Groups {
		fmt.Printf("   📦 Grupo (Size: %s) | 👑 KEEPER: %s\n", utils.ByteCountDecimal(g.Size), green(g.Keeper.Path))

		for _, hl := range g.HardLinks {
			fmt.Printf("      🔗 [HardLink]: %s (0B)\n", hl)
		}

		for _, v := range g.Victims {
			switch {
			case deleteMode:
				// BORRADO DEFINITIVO. Un fallo aquí no detiene al resto.
				if err := os.Remove(v.Path); err != nil {
					fmt.Printf("      ❌ Error borrando %s: %v\n", v.Path, err)
				} else {
					fmt.Printf("      🔥 Borrado: %s\n", red(v.Path))
					actionCount++
					freedBytes += v.Size
				}
			case trashMode:
				// MOVIMIENTO A PAPELERA
				if err := moveToTrash(v.Path, trashDir); err != nil {
					fmt.Printf("      ❌ Error moviendo %s: %v\n", v.Path, err)
				} else {
					fmt.Printf("      ♻️  Movido a basura: %s\n", v.Path)
					actionCount++
					freedBytes += v.Size
				}
			default:
				// DRY RUN: cero mutaciones
				fmt.Printf("      🗑️  [Candidato]: %s\n", v.Path)
			}
		}
		fmt.Println("")
	}

	reportFailures(r, yellow)

	fmt.Println("------------------------------------------------")
	fmt.Printf("📊 Conjuntos: %d | Archivos escaneados: %d | Caché: %d aciertos / %d fallos\n",
		r.Summary.TotalSets, r.Summary.TotalFilesScanned, r.Summary.CacheHits, r.Summary.CacheMisses)
	if deleteMode || trashMode {
		fmt.Printf("🏁 Operación completada. Archivos procesados: %d\n", actionCount)
		fmt.Printf("💾 Espacio liberado: %s\n", utils.ByteCountDecimal(freedBytes))
	} else {
		fmt.Printf("🏁 Escaneo terminado. Candidatos a borrar: %d\n", r.Summary.TotalDuplicates)
		fmt.Printf("💾 Espacio recuperable: %s\n", r.Summary.BytesSavedHuman)
		fmt.Println("💡 Opciones disponibles:")
		fmt.Println("   --trash   -> Mover a carpeta segura")
		fmt.Println("   --output  -> Generar script de revisión")
		fmt.Println("   --delete  -> Borrar inmediatamente")
	}
}

// reportFailures lista los archivos que no se pudieron leer durante el
// hashing. Son avisos, nunca motivo de exit distinto de cero.
func reportFailures(r Report, paint func(a ...interface{}) string) {
	if len(r.Failures) == 0 {
		return
	}
	fmt.Printf("%s\n", paint(fmt.Sprintf("⚠️  %d archivo(s) ilegibles quedaron fuera del análisis:", len(r.Failures))))
	for _, f := range r.Failures {
		fmt.Printf("      ⚠️  %s: %s\n", f.Path, f.Err)
	}
}

// moveToTrash mueve el archivo a la carpeta trashDir.
// Renombra el archivo para evitar colisiones: nombre_TIMESTAMP.ext
func moveToTrash(srcPath, trashDir string) error {
	filename := filepath.Base(srcPath)
	ext := filepath.Ext(filename)
	nameWithoutExt := strings.TrimSuffix(filename, ext)

	// Generar nombre único: archivo_171562912.txt
	uniqueName := fmt.Sprintf("%s_%d%s", nameWithoutExt, time.Now().UnixNano(), ext)
	destPath := filepath.Join(trashDir, uniqueName)

	// Intentar mover (Rename es atómico dentro del mismo FS)
	err := os.Rename(srcPath, destPath)
	if err != nil {
		// Si falla (ej: diferentes particiones), hacemos Copy + Remove
		// Nota: os.Rename falla entre discos distintos.
		if isCrossDeviceError(err) {
			return moveCrossDevice(srcPath, destPath)
		}
		return err
	}
	return nil
}

// isCrossDeviceError detecta si el error es "invalid cross-device link"
func isCrossDeviceError(err error) bool {
	// Es una forma simplificada de detectarlo
	return strings.Contains(err.Error(), "cross-device") || strings.Contains(err.Error(), "EXDEV")
}

// moveCrossDevice copia y borra (para mover entre particiones)
func moveCrossDevice(src, dst string) error {
	input, err := os.Open(src)
	if err != nil {
		return err
	}
	defer input.Close()

	output, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer output.Close()

	if _, err := io.Copy(output, input); err != nil {
		return err
	}

	// Cerrar explícitamente para asegurar flush
	output.Close()
	input.Close()

	return os.Remove(src)
}

// generateReport aplica la estrategia de retención a cada conjunto y
// arma el informe final.
func generateReport(res *engine.Result, rootDir string, strategy engine.Strategy, sizeOnly bool) Report {
	rep := Report{
		Metadata: Metadata{
			ScannedPath: rootDir,
			Strategy:    strategy.String(),
			SizeOnly:    sizeOnly,
			Timestamp:   time.Now(),
			Duration:    res.Duration.String(),
		},
		Summary: Summary{
			TotalFilesScanned: res.TotalScanned,
			CacheHits:         res.CacheHits,
			CacheMisses:       res.CacheMisses,
		},
		Failures: res.Failures,
		Groups:   []GroupResult{},
	}

	for _, set := range res.Sets {
		keeper, hardlinks, victims := engine.Select(set, strategy)
		if keeper == nil || (len(victims) == 0 && len(hardlinks) == 0) {
			continue
		}

		gRes := GroupResult{
			Hash:   set.Hash,
			Size:   set.Size,
			Keeper: keeper,
		}
		for _, hl := range hardlinks {
			gRes.HardLinks = append(gRes.HardLinks, hl.Path)
			rep.Summary.TotalHardLinks++
		}
		for _, v := range victims {
			gRes.Victims = append(gRes.Victims, Victim{
				Path:    v.Path,
				Size:    v.Size,
				ModTime: v.ModTime,
			})
			rep.Summary.TotalDuplicates++
			rep.Summary.BytesSaved += v.Size
		}

		rep.Summary.TotalSets++
		rep.Groups = append(rep.Groups, gRes)
	}

	rep.Summary.BytesSavedHuman = utils.ByteCountDecimal(rep.Summary.BytesSaved)
	return rep
}

func generateShellScript(r Report, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "#!/bin/sh\n")
	fmt.Fprintf(w, "# Generado por dupescan (estrategia: %s)\n", r.Metadata.Strategy)
	fmt.Fprintf(w, "echo 'Iniciando limpieza...'\n\n")

	for _, g := range r.Groups {
		if len(g.Victims) == 0 {
			continue
		}
		fmt.Fprintf(w, "# Group Hash: %x\n", g.Hash)
		fmt.Fprintf(w, "# Keeper: %s\n", g.Keeper.Path)
		for _, v := range g.Victims {
			fmt.Fprintf(w, "rm -v %q\n", v.Path)
		}
		fmt.Fprintf(w, "\n")
	}
	return w.Flush()
}

func printJSON(r Report) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(r)
}

func die(err error, jsonMode bool) {
	if jsonMode {
		fmt.Printf(`{"error": %q}`+"\n", err.Error())
	} else {
		fmt.Fprintf(os.Stderr, "❌ Error fatal: %v\n", err)
	}
	os.Exit(1)
}
