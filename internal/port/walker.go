package port

type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}

// Extractor turns raw file bytes into plain text, dispatching on extension.
type Extractor interface {
	Extract(filename string, data []byte) (string, error)
}
