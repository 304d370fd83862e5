package hasher

import (
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// BlockSize optimiza la lectura del disco (64KB, igual que un read() generoso)
const BlockSize = 64 * 1024

// EmptyDigest es el hash de un stream vacío. Los archivos de 0 bytes
// comparten este valor sin necesidad de abrirlos.
var EmptyDigest = xxhash.Sum64(nil)

// bufferPool reutiliza los buffers de lectura entre workers
var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, BlockSize)
		return &b
	},
}

// hashPool para reutilizar el estado del digest
var hashPool = sync.Pool{
	New: func() any {
		return xxhash.New()
	},
}

// HashFile calcula el hash de contenido completo leyendo en bloques acotados.
// Es una función pura del contenido: mismo contenido => mismo digest,
// da igual la ruta o los metadatos.
func HashFile(path string) (uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	// Pooling
	h := hashPool.Get().(*xxhash.Digest)
	h.Reset()
	defer hashPool.Put(h)

	bufPtr := bufferPool.Get().(*[]byte)
	buf := *bufPtr
	defer bufferPool.Put(bufPtr)

	if _, err := io.CopyBuffer(h, file, buf); err != nil {
		return 0, err
	}

	return h.Sum64(), nil
}
