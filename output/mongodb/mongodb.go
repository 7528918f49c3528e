// Package mongodb provides the MongoDB output component: it consumes row
// envelopes from NATS subjects, runs them through the field-mapping
// transformation core, and writes the resulting documents to a collection.
package mongodb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mongosink/builder"
	"github.com/c360/mongosink/component"
	"github.com/c360/mongosink/errors"
	"github.com/c360/mongosink/mapping"
	"github.com/c360/mongosink/mongoclient"
	"github.com/c360/mongosink/natsclient"
	"github.com/c360/mongosink/row"
)

// Write strategies supported by the output.
const (
	StrategyInsert         = "insert"
	StrategyUpsert         = "upsert"
	StrategyMultiUpdate    = "multi-update"
	StrategyModifierUpdate = "modifier-update"
)

// Config holds configuration for the MongoDB output component
type Config struct {
	Ports        *component.PortConfig   `json:"ports"         schema:"type:ports,description:Port configuration,category:basic"`
	Hosts        []string                `json:"hosts"         schema:"type:array,description:MongoDB host list,category:basic,required"`
	Database     string                  `json:"database"      schema:"type:string,description:Target database,category:basic,required"`
	Collection   string                  `json:"collection"    schema:"type:string,description:Target collection,category:basic,required"`
	Username     string                  `json:"username"      schema:"type:string,description:Auth username,category:advanced"`
	Password     string                  `json:"password"      schema:"type:string,description:Auth password,category:advanced"`
	AuthDatabase string                  `json:"auth_database" schema:"type:string,description:Auth source database,category:advanced"`
	Strategy     string                  `json:"strategy"      schema:"enum:insert|upsert|multi-update|modifier-update,description:Write strategy,category:basic"`
	Upsert       bool                    `json:"upsert"        schema:"type:bool,description:Upsert on update strategies,category:basic"`
	Truncate     bool                    `json:"truncate"      schema:"type:bool,description:Truncate the collection before writing,category:advanced"`
	BatchSize    int                     `json:"batch_size"    schema:"type:int,description:Insert batch size,category:advanced"`
	TimeoutSecs  int                     `json:"timeout_secs"  schema:"type:int,description:Connect timeout in seconds,category:advanced"`
	Fields       []*mapping.Field        `json:"fields"        schema:"type:array,description:Field mappings,category:basic,required"`
	Indexes      []mongoclient.IndexSpec `json:"indexes"       schema:"type:array,description:Index operations,category:advanced"`
	Vars         map[string]string       `json:"vars"          schema:"type:object,description:Interpolation variables,category:advanced"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "hosts are required")
	}
	if c.Database == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "database is required")
	}
	if c.Collection == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "collection is required")
	}
	if len(c.Fields) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "field mappings are required")
	}

	switch c.Strategy {
	case StrategyInsert, StrategyUpsert, StrategyMultiUpdate, StrategyModifierUpdate:
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"strategy must be one of: insert, upsert, multi-update, modifier-update")
	}

	if c.BatchSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"batch_size cannot be negative")
	}

	return nil
}

// DefaultConfig returns default configuration for the MongoDB output
func DefaultConfig() Config {
	inputDefs := []component.PortDefinition{
		{
			Name:        "nats_input",
			Type:        "nats",
			Subject:     "rows.>",
			Required:    true,
			Description: "NATS subjects carrying row envelopes",
		},
	}

	outputDefs := []component.PortDefinition{
		{
			Name:        "mongo_output",
			Type:        "mongodb",
			Required:    false,
			Description: "Target MongoDB collection",
		},
	}

	return Config{
		Ports: &component.PortConfig{
			Inputs:  inputDefs,
			Outputs: outputDefs,
		},
		Hosts:       []string{"localhost"},
		Database:    "mongosink",
		Collection:  "rows",
		Strategy:    StrategyInsert,
		BatchSize:   100,
		TimeoutSecs: 10,
	}
}

// mongodbSchema defines the configuration schema for the MongoDB output component
var mongodbSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Output implements MongoDB document writing for NATS row messages
type Output struct {
	name     string
	subjects []string
	config   Config

	builder    *builder.Builder
	client     *mongoclient.Client
	collection *mongoclient.Collection
	natsClient *natsclient.Client
	logger     *slog.Logger
	retryCfg   errors.RetryConfig

	// Buffer for batching plain inserts
	buffer   []any
	bufferMu sync.Mutex

	// Lifecycle management
	shutdown    chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex
	wg          *sync.WaitGroup

	// Counters
	rowsWritten  int64
	rowsSkipped  int64
	writeErrors  int64
	lastActivity time.Time

	// Prometheus metrics (nil when no registry is configured)
	writtenMetric prometheus.Counter
	skippedMetric prometheus.Counter
	errorsMetric  prometheus.Counter
}

// NewOutput creates a new MongoDB output from configuration
func NewOutput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := component.SafeUnmarshal(rawConfig, &config); err != nil {
		return nil, errors.WrapInvalid(err, "Output", "NewOutput", "config unmarshal")
	}

	if config.Ports == nil {
		config = DefaultConfig()
	}

	// Extract subjects from port configuration
	var inputSubjects []string
	for _, input := range config.Ports.Inputs {
		if input.Type == "nats" {
			inputSubjects = append(inputSubjects, input.Subject)
		}
	}

	if len(inputSubjects) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Output", "NewOutput", "no input subjects configured")
	}

	o := &Output{
		name:       "mongodb-output",
		subjects:   inputSubjects,
		config:     config,
		natsClient: deps.NATSClient,
		logger:     deps.GetLoggerWithComponent("mongodb-output"),
		retryCfg:   errors.DefaultRetryConfig(),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		wg:         &sync.WaitGroup{},
	}

	if deps.MetricsRegistry != nil {
		o.writtenMetric = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mongosink", Subsystem: "output", Name: "rows_written_total",
			Help: "Total number of rows written to MongoDB",
		})
		o.skippedMetric = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mongosink", Subsystem: "output", Name: "rows_skipped_total",
			Help: "Total number of rows skipped (all relevant cells null)",
		})
		o.errorsMetric = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mongosink", Subsystem: "output", Name: "write_errors_total",
			Help: "Total number of row write failures",
		})
		for name, collector := range map[string]prometheus.Collector{
			"rows_written_total": o.writtenMetric,
			"rows_skipped_total": o.skippedMetric,
			"write_errors_total": o.errorsMetric,
		} {
			if err := deps.MetricsRegistry.Register(o.name, name, collector); err != nil {
				return nil, errors.Wrap(err, "Output", "NewOutput", "metric registration")
			}
		}
	}

	return o, nil
}

// vars returns the interpolator for the configured variable set.
func (o *Output) vars() row.Interpolator {
	if len(o.config.Vars) > 0 {
		return row.MapVars(o.config.Vars)
	}
	return row.EnvVars{}
}

// Initialize compiles the field-mapping schema. An inconsistent top-level
// classification fails here, before any row is processed.
func (o *Output) Initialize() error {
	b, err := builder.New(o.config.Fields, o.vars(), o.logger)
	if err != nil {
		return errors.Wrap(err, "Output", "Initialize", "compile field mappings")
	}
	o.builder = b

	o.logger.Info("field mappings compiled",
		"mappings", len(o.config.Fields),
		"top_level", b.TopLevel().String(),
		"strategy", o.config.Strategy)

	return nil
}

// Start connects to MongoDB, prepares the collection, and begins consuming rows
func (o *Output) Start(ctx context.Context) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if o.running {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Output", "Start", "check running state")
	}
	if o.builder == nil {
		return errors.WrapFatal(errors.ErrNotStarted, "Output", "Start", "Initialize must run first")
	}
	if o.natsClient == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "Output", "Start", "NATS client required")
	}

	client, err := mongoclient.Connect(ctx, mongoclient.Config{
		Hosts:          o.config.Hosts,
		Username:       o.config.Username,
		Password:       o.config.Password,
		AuthDatabase:   o.config.AuthDatabase,
		ConnectTimeout: time.Duration(o.config.TimeoutSecs) * time.Second,
	}, o.logger)
	if err != nil {
		return errors.Wrap(err, "Output", "Start", "connect to MongoDB")
	}
	o.client = client
	o.collection = client.Collection(o.config.Database, o.config.Collection)

	if o.config.Truncate {
		if err := o.collection.Truncate(ctx); err != nil {
			return errors.Wrap(err, "Output", "Start", "truncate collection")
		}
		o.logger.Info("collection truncated",
			"database", o.config.Database,
			"collection", o.config.Collection)
	}

	if len(o.config.Indexes) > 0 {
		if err := o.collection.ApplyIndexes(ctx, o.config.Indexes, o.config.Truncate); err != nil {
			return errors.Wrap(err, "Output", "Start", "apply indexes")
		}
	}

	for _, subject := range o.subjects {
		if err := o.natsClient.Subscribe(ctx, subject, o.handleMessage); err != nil {
			return errors.WrapTransient(err, "Output", "Start", fmt.Sprintf("subscribe to %s", subject))
		}
	}

	// Plain inserts batch; flush on a timer as well as on size.
	if o.config.Strategy == StrategyInsert {
		o.wg.Add(1)
		go o.flushLoop(ctx)
	}

	o.mu.Lock()
	o.running = true
	o.startTime = time.Now()
	o.mu.Unlock()

	o.logger.Info("MongoDB output started",
		"input_subjects", o.subjects,
		"database", o.config.Database,
		"collection", o.config.Collection,
		"strategy", o.config.Strategy,
		"batch_size", o.config.BatchSize)

	return nil
}

// Stop gracefully stops the output
func (o *Output) Stop(timeout time.Duration) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if !o.running {
		return nil
	}

	close(o.shutdown)

	waitCh := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		// Clean shutdown
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("shutdown timeout after %v", timeout), "Output", "Stop", "shutdown")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Flush any buffered inserts before disconnecting
	o.flush(ctx)

	if o.client != nil {
		if err := o.client.Close(ctx); err != nil {
			o.logger.Warn("failed to close MongoDB client", "error", err)
		}
		o.client = nil
		o.collection = nil
	}

	o.mu.Lock()
	o.running = false
	o.mu.Unlock()

	o.closeOnce.Do(func() {
		close(o.done)
	})

	return nil
}

// handleMessage processes one incoming row envelope
func (o *Output) handleMessage(ctx context.Context, msgData []byte) {
	meta, r, err := decodeRow(msgData)
	if err != nil {
		atomic.AddInt64(&o.writeErrors, 1)
		if o.errorsMetric != nil {
			o.errorsMetric.Inc()
		}
		o.logger.Error("failed to decode row envelope", "error", err)
		return
	}

	if err := o.writeRow(ctx, meta, r); err != nil {
		atomic.AddInt64(&o.writeErrors, 1)
		if o.errorsMetric != nil {
			o.errorsMetric.Inc()
		}
		o.logger.Error("failed to write row", "error", err, "strategy", o.config.Strategy)
		return
	}

	o.mu.Lock()
	o.lastActivity = time.Now()
	o.mu.Unlock()
}

// Discoverable interface implementation

// Meta returns component metadata
func (o *Output) Meta() component.Metadata {
	return component.Metadata{
		Name:        o.name,
		Type:        "output",
		Description: "MongoDB output writing mapped row documents to a collection",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions
func (o *Output) InputPorts() []component.Port {
	ports := make([]component.Port, len(o.subjects))
	for i, subj := range o.subjects {
		ports[i] = component.Port{
			Name:      fmt.Sprintf("input_%d", i),
			Direction: component.DirectionInput,
			Required:  true,
			Config:    component.NATSPort{Subject: subj},
		}
	}
	return ports
}

// OutputPorts returns the collection this component writes to
func (o *Output) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:      "collection",
			Direction: component.DirectionOutput,
			Required:  true,
			Config: component.MongoPort{
				Database:   o.config.Database,
				Collection: o.config.Collection,
			},
		},
	}
}

// ConfigSchema returns the configuration schema
func (o *Output) ConfigSchema() component.ConfigSchema {
	return mongodbSchema
}

// Health returns the current health status
func (o *Output) Health() component.HealthStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    o.running && o.collection != nil,
		LastCheck:  time.Now(),
		ErrorCount: int(atomic.LoadInt64(&o.writeErrors)),
		Uptime:     time.Since(o.startTime),
	}
}

// DataFlow returns current data flow metrics
func (o *Output) DataFlow() component.FlowMetrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	written := atomic.LoadInt64(&o.rowsWritten)
	errorCount := atomic.LoadInt64(&o.writeErrors)

	var errorRate float64
	if written > 0 {
		errorRate = float64(errorCount) / float64(written)
	}

	return component.FlowMetrics{
		ErrorRate:    errorRate,
		LastActivity: o.lastActivity,
	}
}

// Register registers the MongoDB output component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "mongodb",
		Factory:     NewOutput,
		Schema:      mongodbSchema,
		Type:        "output",
		Protocol:    "mongodb",
		Domain:      "storage",
		Description: "MongoDB output writing mapped row documents to a collection",
		Version:     "0.1.0",
	})
}
