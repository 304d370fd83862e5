package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyunomas/dupescan/internal/engine"
	"github.com/soyunomas/dupescan/internal/entities"
)

func makeResult(t *testing.T, root string) *engine.Result {
	t.Helper()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	set := &entities.DuplicateSet{Size: 4, Hash: 0xfeed}
	for i, name := range []string{"a.txt", "b.txt", "c.txt"} {
		path := filepath.Join(root, name)
		require.NoError(t, os.WriteFile(path, []byte("dato"), 0644))
		set.Add(&entities.FileInfo{
			Path:     path,
			Size:     4,
			ModTime:  base.Add(time.Duration(i) * time.Hour),
			DeviceID: 1,
			Inode:    uint64(i + 1),
		})
	}

	return &engine.Result{
		Sets:         []*entities.DuplicateSet{set},
		TotalScanned: 3,
		Duration:     time.Second,
	}
}

func TestValidateActionFlags(t *testing.T) {
	// Una sola acción y un solo formato de salida
	assert.NoError(t, validateActionFlags(false, false, false, ""))
	assert.NoError(t, validateActionFlags(true, false, false, ""))
	assert.NoError(t, validateActionFlags(false, false, true, ""))
	assert.NoError(t, validateActionFlags(false, false, false, "script.sh"))

	assert.Error(t, validateActionFlags(true, true, false, ""))
	assert.Error(t, validateActionFlags(true, false, false, "script.sh"))
	assert.Error(t, validateActionFlags(false, true, false, "script.sh"))
	assert.Error(t, validateActionFlags(false, false, true, "script.sh"))
}

func TestGenerateReport(t *testing.T) {
	root := t.TempDir()
	res := makeResult(t, root)

	rep := generateReport(res, root, engine.KeepNewest, false)

	require.Len(t, rep.Groups, 1)
	g := rep.Groups[0]

	// newest: c.txt tiene el mtime más reciente
	assert.Equal(t, filepath.Join(root, "c.txt"), g.Keeper.Path)
	require.Len(t, g.Victims, 2)
	assert.Equal(t, int64(2), rep.Summary.TotalDuplicates)
	assert.Equal(t, int64(8), rep.Summary.BytesSaved) // 2 copias x 4 bytes
	assert.Equal(t, int64(1), rep.Summary.TotalSets)
	assert.Equal(t, "newest", rep.Metadata.Strategy)
}

func TestGenerateReportSkipsSetsWithoutVictims(t *testing.T) {
	res := &engine.Result{
		Sets: []*entities.DuplicateSet{{Size: 4}}, // conjunto vacío degenerado
	}
	rep := generateReport(res, ".", engine.KeepFirst, false)
	assert.Empty(t, rep.Groups)
	assert.Equal(t, int64(0), rep.Summary.TotalSets)
}

func TestDryRunDoesNotTouchFiles(t *testing.T) {
	root := t.TempDir()
	res := makeResult(t, root)
	rep := generateReport(res, root, engine.KeepNewest, false)

	// Ni delete ni trash: cero mutaciones en disco
	processResults(rep, false, false)

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		_, err := os.Stat(filepath.Join(root, name))
		assert.NoError(t, err, "%s debería seguir existiendo", name)
	}
}

func TestDeleteRemovesOnlyVictims(t *testing.T) {
	root := t.TempDir()
	res := makeResult(t, root)
	rep := generateReport(res, root, engine.KeepNewest, false)

	processResults(rep, true, false)

	// El keeper sobrevive, las víctimas no
	_, err := os.Stat(filepath.Join(root, "c.txt"))
	assert.NoError(t, err)
	for _, name := range []string{"a.txt", "b.txt"} {
		_, err := os.Stat(filepath.Join(root, name))
		assert.True(t, os.IsNotExist(err), "%s debería haberse borrado", name)
	}
}

func TestMoveToTrash(t *testing.T) {
	root := t.TempDir()
	trash := filepath.Join(root, "TRASH_BIN")
	require.NoError(t, os.MkdirAll(trash, 0755))

	src := filepath.Join(root, "victima.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	require.NoError(t, moveToTrash(src, trash))

	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(trash)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	// Nombre único: prefijo original + timestamp + extensión
	assert.Contains(t, entries[0].Name(), "victima_")
	assert.Equal(t, ".txt", filepath.Ext(entries[0].Name()))
}

func TestGenerateShellScript(t *testing.T) {
	root := t.TempDir()
	res := makeResult(t, root)
	rep := generateReport(res, root, engine.KeepFirst, false)

	script := filepath.Join(root, "limpieza.sh")
	require.NoError(t, generateShellScript(rep, script))

	data, err := os.ReadFile(script)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "#!/bin/sh")
	assert.Contains(t, content, "rm -v")
	// El keeper jamás aparece en un rm
	assert.NotContains(t, content, `rm -v "`+rep.Groups[0].Keeper.Path+`"`)
}
