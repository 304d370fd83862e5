package entities

import (
	"time"
)

// FileInfo representa un archivo en disco con los metadatos necesarios.
// Es una instantánea inmutable tomada en el momento del escaneo.
// Añadimos tags `json` para serialización.
type FileInfo struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size_bytes"`
	Ext      string    `json:"ext,omitempty"`
	Hash     uint64    `json:"hash"`
	ModTime  time.Time `json:"mod_time"`
	DeviceID uint64    `json:"device_id"`
	Inode    uint64    `json:"inode"`
}

// DuplicateSet representa un conjunto de archivos con idéntico tamaño
// y (salvo en modo size-only) idéntico hash de contenido.
// El orden de Files respeta el orden de aparición durante el escaneo.
type DuplicateSet struct {
	Size  int64       `json:"size_bytes"`
	Hash  uint64      `json:"hash"`
	Count int64       `json:"count"`
	Files []*FileInfo `json:"files"`
}

// Add agrega un archivo al conjunto
func (ds *DuplicateSet) Add(f *FileInfo) {
	ds.Files = append(ds.Files, f)
	ds.Count++
}

// WastedBytes calcula el espacio redundante del conjunto: todas las
// copias menos la que se conserva.
func (ds *DuplicateSet) WastedBytes() int64 {
	if ds.Count < 2 {
		return 0
	}
	return (ds.Count - 1) * ds.Size
}
