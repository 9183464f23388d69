package config

import "go.uber.org/fx"

// NewLoggingConfigProvider extracts *LoggingConfig from *Config.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Lockxfer.System.Logging
}

// NewTransferConfigProvider extracts *TransferConfig from *Config so that the engine
// packages depend only on the transfer settings.
func NewTransferConfigProvider(cfg *Config) *TransferConfig {
	return &cfg.Lockxfer.Transfer
}

// NewInfrastructureConfigProvider extracts *InfrastructureConfig from *Config.
func NewInfrastructureConfigProvider(cfg *Config) *InfrastructureConfig {
	return &cfg.Lockxfer.Infrastructure
}

// NewObservabilityConfigProvider extracts *ObservabilityConfig from *Config.
func NewObservabilityConfigProvider(cfg *Config) *ObservabilityConfig {
	return &cfg.Lockxfer.Observability
}

// NewWorkflowConfigProvider extracts *WorkflowConfig from *Config.
func NewWorkflowConfigProvider(cfg *Config) *WorkflowConfig {
	return &cfg.Lockxfer.Workflow
}

// Module provides the sections of the supplied *Config to Fx.
var Module = fx.Options(
	fx.Provide(
		NewLoggingConfigProvider,
		NewTransferConfigProvider,
		NewInfrastructureConfigProvider,
		NewObservabilityConfigProvider,
		NewWorkflowConfigProvider,
	),
)
