package loader

import (
	"context"
)

type GraphFileType string

const (
	GraphFileTypeText GraphFileType = "text"
	GraphFileTypeURL  GraphFileType = "url"
	GraphFileTypeFile GraphFileType = "file"
)

// GraphFile represents one raw source of book text that can be turned into
// chapters for graph construction: pasted text, a URL or a local file.
//
// The actual content of URL and file sources is retrieved via the
// associated GraphFileLoader.
type GraphFile struct {
	ID       string
	FilePath string
	FileType GraphFileType
	Text     string
	Loader   GraphFileLoader
}

// NewGraphFileParams defines the input parameters for creating a new
// GraphFile instance.
type NewGraphFileParams struct {
	ID       string
	FilePath string
	Loader   GraphFileLoader
}

// NewGraphTextFile creates a GraphFile for text that is already in memory,
// such as text pasted by a user. No loader is needed.
func NewGraphTextFile(id string, text string) GraphFile {
	return GraphFile{
		ID:       id,
		FileType: GraphFileTypeText,
		Text:     text,
	}
}

// NewGraphURLFile creates a GraphFile whose text is fetched from a URL.
func NewGraphURLFile(params NewGraphFileParams) GraphFile {
	return GraphFile{
		ID:       params.ID,
		FilePath: params.FilePath,
		FileType: GraphFileTypeURL,
		Loader:   params.Loader,
	}
}

// NewGraphLocalFile creates a GraphFile read from the local filesystem.
func NewGraphLocalFile(params NewGraphFileParams) GraphFile {
	return GraphFile{
		ID:       params.ID,
		FilePath: params.FilePath,
		FileType: GraphFileTypeFile,
		Loader:   params.Loader,
	}
}

// GetText retrieves the raw text content of the file.
//
// Example:
//
//	text, err := file.GetText(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(string(text))
func (f *GraphFile) GetText(ctx context.Context) ([]byte, error) {
	if f.FileType == GraphFileTypeText || f.Loader == nil {
		return []byte(f.Text), nil
	}
	return f.Loader.GetFileText(ctx, *f)
}

// Source returns a human readable origin of the file for logs and errors.
func (f *GraphFile) Source() string {
	if f.FileType == GraphFileTypeText {
		return "text"
	}
	return f.FilePath
}

// GraphFileLoader defines the interface for loading the contents of a
// GraphFile. Implementations may load from the web or from disk.
type GraphFileLoader interface {
	GetFileText(ctx context.Context, file GraphFile) ([]byte, error)
}
