package port

import "docrag/internal/domain"

// DocumentRegistry records which sources have been ingested.
type DocumentRegistry interface {
	PutDoc(doc domain.Document) error

	GetDoc(source string) (domain.Document, error)

	DeleteDoc(source string) error

	ListDocs() ([]domain.Document, error)
}
