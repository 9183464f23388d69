package config

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

const moduleName = "config"

// LoadConfig layers the configuration: defaults, the embedded YAML (after ${VAR}
// expansion, with .env loaded first), then environment variables derived from the
// yaml tags (e.g. LOCKXFER_TRANSFER_BLOCK_SIZE). It runs before the Fx graph is
// built so that the application can choose its modules from the result.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Debugf(".env file (%s) not loaded: %v", envFilePath, err)
		}
	}
	expander := NewOsEnvironmentExpander()

	cfg := NewConfig()

	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to expand environment placeholders", err, false, false)
	}

	// Decoding onto the defaults keeps every key the document leaves out; sequences
	// such as workflow.steps are replaced as a whole.
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}
	if cfg.Lockxfer.AdapterConfigs == nil {
		cfg.Lockxfer.AdapterConfigs = map[string]interface{}{}
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	cfg.EmbeddedConfig = embeddedConfig
	return cfg, nil
}

// Validate checks the settings the engine cannot run without.
func Validate(cfg *Config) error {
	t := cfg.Lockxfer.Transfer
	var problems []string
	if t.BlockSize <= 0 {
		problems = append(problems, fmt.Sprintf("transfer.block_size must be positive (got %d)", t.BlockSize))
	}
	if t.RemoteTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("transfer.remote_timeout must be positive (got %d)", t.RemoteTimeout))
	}
	if t.Concurrency <= 0 {
		problems = append(problems, fmt.Sprintf("transfer.concurrency must be positive (got %d)", t.Concurrency))
	}
	for name, value := range map[string]string{
		"transfer.header_table":       t.HeaderTable,
		"transfer.detail_table":       t.DetailTable,
		"transfer.log_table":          t.LogTable,
		"transfer.import_table":       t.ImportTable,
		"transfer.staging_connection": t.StagingConnection,
		"transfer.remote_connection":  t.RemoteConnection,
		"transfer.source_system":      t.SourceSystem,
		"transfer.message_type":       t.MessageType,
	} {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, name+" must not be empty")
		}
	}
	if len(cfg.Lockxfer.Workflow.Steps) == 0 {
		problems = append(problems, "workflow.steps must declare at least one step")
	}
	switch cfg.Lockxfer.Infrastructure.StateStore {
	case "memory", "sql":
	default:
		problems = append(problems, fmt.Sprintf("infrastructure.state_store must be 'memory' or 'sql' (got '%s')", cfg.Lockxfer.Infrastructure.StateStore))
	}
	switch cfg.Lockxfer.Infrastructure.Reconciliation {
	case "log", "sql":
	default:
		problems = append(problems, fmt.Sprintf("infrastructure.reconciliation must be 'log' or 'sql' (got '%s')", cfg.Lockxfer.Infrastructure.Reconciliation))
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return exception.NewBatchError(moduleName, "invalid configuration: "+strings.Join(problems, "; "), nil, false, false)
}

// loadStructFromEnv recursively loads configuration values into a struct from environment
// variables named after the "yaml" tags of the path, upper-cased and joined with "_".
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}
		if field.Kind() == reflect.Map && field.Type().Key().Kind() == reflect.String {
			loadMapFromEnv(field, envVarName+"_")
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadMapFromEnv fills map[string]interface{} entries such as database connections.
// LOCKXFER_DATABASE_GSI_STAGING_HOST=db sets database["gsi_staging"]["host"] = "db" when
// "gsi_staging" is already a key of the map; otherwise the first segment is the key.
func loadMapFromEnv(mapField reflect.Value, prefix string) {
	if mapField.Type().Elem().Kind() != reflect.Interface {
		return
	}
	if mapField.IsNil() {
		mapField.Set(reflect.MakeMap(mapField.Type()))
	}
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(env, prefix), "=", 2)
		if len(parts) != 2 {
			continue
		}
		mapKey, fieldName, ok := splitEnvKey(mapField, strings.ToLower(parts[0]))
		if !ok {
			continue
		}

		entry := map[string]interface{}{}
		if existing := mapField.MapIndex(reflect.ValueOf(mapKey)); existing.IsValid() {
			if m, isMap := existing.Interface().(map[string]interface{}); isMap {
				entry = m
			}
		}
		entry[fieldName] = parts[1]
		mapField.SetMapIndex(reflect.ValueOf(mapKey), reflect.ValueOf(entry))
	}
}

// splitEnvKey separates "<map key>_<field>" preferring the longest existing map key.
func splitEnvKey(mapField reflect.Value, keyAndField string) (string, string, bool) {
	best := ""
	for _, k := range mapField.MapKeys() {
		key := strings.ToLower(k.String())
		if strings.HasPrefix(keyAndField, key+"_") && len(key) > len(best) {
			best = k.String()
		}
	}
	if best != "" {
		return best, keyAndField[len(best)+1:], true
	}
	idx := strings.Index(keyAndField, "_")
	if idx <= 0 || idx == len(keyAndField)-1 {
		return "", "", false
	}
	return keyAndField[:idx], keyAndField[idx+1:], true
}

// setField sets a scalar field from its string representation.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
