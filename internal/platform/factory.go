package platform

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/strata/pkg/adapters/elastic"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/converter"
	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/metadata"
)

// New wires a manager from options:
//
//	m, err := strata.New(strata.WithMappingDir("./mappings"), strata.WithAddresses("http://localhost:9200"))
func New(opts ...Option) (*core.Manager, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// 1. Mappings
	collector, err := initCollector(o, logger)
	if err != nil {
		return nil, err
	}

	// 2. Connection
	conn, err := initConnection(o, collector, logger)
	if err != nil {
		return nil, err
	}

	// 3. Manager (builds the converter)
	strict, _ := o.config["strict"].(bool)
	convOpts := []converter.Option{converter.WithStrict(strict)}
	for class, fn := range o.constructors {
		convOpts = append(convOpts, converter.WithConstructor(class, fn))
	}

	return core.NewManager(core.ManagerConfig{
		Connection:   conn,
		Collector:    collector,
		NewConverter: converter.Factory(convOpts...),
		Logger:       logger,
	})
}

// Collector returns the metadata collector the options describe.
func Collector(opts ...Option) (core.MetadataCollector, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	return initCollector(o, logger)
}

func initCollector(o *options, logger *slog.Logger) (core.MetadataCollector, error) {
	// 1. Check for injected collector
	if o.collector != nil {
		return o.collector, nil
	}

	if len(o.definitions) > 0 {
		return metadata.New(o.definitions, metadata.WithLogger(logger))
	}

	dir, _ := o.config["mapping_dir"].(string)
	if dir == "" {
		return nil, fmt.Errorf("no mappings: set a mapping directory or definitions")
	}

	collectorOpts := []metadata.Option{metadata.WithLogger(logger)}
	if pattern, ok := o.config["mapping_pattern"].(string); ok && pattern != "" {
		collectorOpts = append(collectorOpts, metadata.WithPattern(pattern))
	}
	return metadata.Load(dir, collectorOpts...)
}

func initConnection(o *options, collector core.MetadataCollector, logger *slog.Logger) (core.Connection, error) {
	// 1. Check for injected connection
	if o.connection != nil {
		return o.connection, nil
	}

	// 2. Initialize based on Adapter
	switch o.adapter {
	case "elastic":
		return initElastic(o, collector, logger)
	case "memory":
		return memory.New(memory.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
}

// initElastic handles the initialization logic for the Elasticsearch adapter
func initElastic(o *options, collector core.MetadataCollector, logger *slog.Logger) (core.Connection, error) {
	// Parse Config
	addrs, _ := o.config["addresses"].([]string)
	username, _ := o.config["username"].(string)
	password, _ := o.config["password"].(string)
	prefix, _ := o.config["index_prefix"].(string)
	commitSize, _ := o.config["bulk_commit_size"].(int)
	transport, _ := o.config["transport"].(http.RoundTripper)

	// flush and refresh target the managed indices only
	seen := make(map[string]bool)
	var types []string
	descriptors := collector.Descriptors()
	for _, key := range descriptors.Keys() {
		st := descriptors[key].Type
		if !seen[st] {
			seen[st] = true
			types = append(types, st)
		}
	}

	return elastic.New(elastic.Config{
		Addresses:      addrs,
		Username:       username,
		Password:       password,
		IndexPrefix:    prefix,
		BulkCommitSize: commitSize,
		Types:          types,
		Transport:      transport,
		Logger:         logger,
	})
}
