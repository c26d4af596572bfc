package domain

import (
	"context"
)

// SessionRepository stores sessions between requests.
type SessionRepository interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
}

// RowAppender appends one wide row to a tabular sink. Implementations extend
// the header with new columns and never reorder existing ones.
type RowAppender interface {
	AppendRow(ctx context.Context, row WideRow) error
	Name() string
}

// RecordStore keeps the document form of submitted records.
type RecordStore interface {
	SaveRecord(ctx context.Context, record *ExportRecord) error
	GetBySubmissionID(ctx context.Context, submissionID string) (*ExportRecord, error)
	ListByInstrument(ctx context.Context, instrumentID string, limit, offset int) ([]*ExportRecord, error)
}

// InstrumentCatalog resolves instrument definitions.
type InstrumentCatalog interface {
	Get(id string) (*Instrument, error)
	List() []*Instrument
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	GetPersistenceConfig() *PersistenceConfig
	Validate() error
}
