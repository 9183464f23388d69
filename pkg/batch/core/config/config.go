// Package config provides the configuration model of lockxfer, its defaults and loader.
package config

// EmbeddedConfig holds the raw YAML configuration, typically embedded by main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelTrace  LogLevel = "TRACE"
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// TransferConfig holds the settings consumed by the lock and import steps.
// Names and defaults follow the config items of the original workflow steps.
type TransferConfig struct {
	// BlockSize is the row count per remote fetch and per staging insert block.
	BlockSize int `yaml:"block_size"`
	// RemoteTimeout is the network I/O timeout of one block fetch, in milliseconds.
	RemoteTimeout int `yaml:"remote_timeout"`
	// StagingConnection names the database entry of the local staging database.
	StagingConnection string `yaml:"staging_connection"`
	// RemoteConnection names the database entry of the remote source system.
	RemoteConnection string `yaml:"remote_connection"`
	// HeaderTable is the remote header table name.
	HeaderTable string `yaml:"header_table"`
	// DetailTable is the remote detail table name.
	DetailTable string `yaml:"detail_table"`
	// LogTable is the staging log table that records imported message ids.
	LogTable string `yaml:"log_table"`
	// ImportTable is the staging table receiving detail rows.
	ImportTable string `yaml:"import_table"`
	// DetailOrderBy orders detail rows within one message_id (empty for remote order).
	DetailOrderBy string `yaml:"detail_order_by"`
	// SourceSystem and MessageType form the claim predicate.
	SourceSystem string `yaml:"source_system"`
	MessageType  string `yaml:"message_type"`
	// TargetSystem and ActualFlag are overlaid on every staged row.
	TargetSystem string `yaml:"target_system"`
	ActualFlag   string `yaml:"actual_flag"`
	// RecordCountSentinel excludes headers whose record_count equals it. Empty means
	// "record_count IS NOT NULL".
	RecordCountSentinel string `yaml:"record_count_sentinel"`
	// Concurrency bounds how many message ids the import step transfers at once.
	Concurrency int `yaml:"concurrency"`
}

// StepConfig declares one step of the workflow and its properties.
type StepConfig struct {
	Name       string                 `yaml:"name"`
	Properties map[string]interface{} `yaml:"properties"`
}

// WorkflowConfig declares the ordered step chain executed for each work unit.
type WorkflowConfig struct {
	// Name identifies the workflow in logs and metrics.
	Name string `yaml:"name"`
	// Steps are executed in declared order.
	Steps []StepConfig `yaml:"steps"`
}

// InfrastructureConfig selects the backing stores of supporting services.
type InfrastructureConfig struct {
	// StateStore is "memory" or "sql".
	StateStore string `yaml:"state_store"`
	// StateDBRef names the database holding work-unit state when StateStore is "sql".
	StateDBRef string `yaml:"state_db_ref"`
	// Reconciliation is "log" or "sql".
	Reconciliation string `yaml:"reconciliation"`
	// ReconciliationDBRef names the database holding the reconciliation journal.
	ReconciliationDBRef string `yaml:"reconciliation_db_ref"`
	// MigrateStaging applies the staging schema migrations at start-up.
	MigrateStaging bool `yaml:"migrate_staging"`
	// StagingMigrationsDir is a directory of migrations used instead of the embedded
	// ones; it must contain one subdirectory per database type.
	StagingMigrationsDir string `yaml:"staging_migrations_dir"`
}

// ObservabilityConfig holds metrics and tracing endpoints.
type ObservabilityConfig struct {
	// MetricsAddress is the listen address of the Prometheus handler; empty disables it.
	MetricsAddress string `yaml:"metrics_address"`
	// OTLPEndpoint is the OTLP/HTTP trace collector endpoint; empty disables export.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// ServiceName is reported as the OpenTelemetry service.name resource attribute.
	ServiceName string `yaml:"service_name"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// LockxferConfig holds all configuration under the "lockxfer" top-level key.
type LockxferConfig struct {
	System         SystemConfig         `yaml:"system"`
	Transfer       TransferConfig       `yaml:"transfer"`
	Workflow       WorkflowConfig       `yaml:"workflow"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Observability  ObservabilityConfig  `yaml:"observability"`
	// AdapterConfigs holds the named database connection entries, decoded lazily by the
	// providers with mapstructure.
	AdapterConfigs map[string]interface{} `yaml:"database"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Lockxfer       LockxferConfig `yaml:"lockxfer"`
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// Default step names; they must match the names registered in the step registry.
const (
	StepLock   = "lock"
	StepImport = "import"
)

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	return &Config{
		Lockxfer: LockxferConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: string(LogLevelInfo)},
			},
			Transfer: TransferConfig{
				BlockSize:         60000,
				RemoteTimeout:     600000,
				StagingConnection: "gsi_staging",
				RemoteConnection:  "ebs11i",
				HeaderTable:       "h3g_it_gl_int_header",
				DetailTable:       "h3g_it_gl_int_detail",
				LogTable:          "h3g_it_gl_import_log",
				ImportTable:       "h3g_it_gl_import_all",
				SourceSystem:      "R11",
				MessageType:       "R11_JOURNALS",
				TargetSystem:      "H3G",
				ActualFlag:        "A",
				Concurrency:       1,
			},
			Workflow: WorkflowConfig{
				Name:  "it-mip-70",
				Steps: []StepConfig{{Name: StepLock}, {Name: StepImport}},
			},
			Infrastructure: InfrastructureConfig{
				StateStore:     "memory",
				Reconciliation: "log",
				MigrateStaging: true,
			},
			Observability: ObservabilityConfig{
				ServiceName: "lockxfer",
			},
			AdapterConfigs: map[string]interface{}{},
		},
	}
}
