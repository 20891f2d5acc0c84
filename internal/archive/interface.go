package archive

import (
	"github.com/tardnicus/wemb/internal/config"
)

// Store is the contract for digest archive backends.
type Store interface {
	Store(filename string, data []byte) error
	Retrieve(filename string) ([]byte, error)
	List(prefix string) ([]string, error)
	Delete(filename string) error
}

// New selects an archive backend from the configuration: Azure Blob Storage
// when a storage account is configured, a local directory otherwise.
func New(cfg *config.Config) (Store, error) {
	if cfg.StorageAccount != "" {
		return NewAzureStore(cfg.StorageAccount, cfg.StorageContainer)
	}
	return NewLocalStore(cfg.ArchiveDir)
}
