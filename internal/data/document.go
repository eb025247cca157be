package data

import (
	"moderation/internal/document"
)

// NewDocumentRegistry creates the registry of live documents. Documents are
// registered by the API or the check command as they are loaded.
func NewDocumentRegistry() *document.Registry {
	return document.NewRegistry()
}
