package dataservice

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stanley20008love/lark-proxyss/config"
)

const (
	SourceLive = "live"
	SourceMock = "mock"
)

// DataServiceRegistry manages multiple data sources
type DataServiceRegistry struct {
	mu         sync.RWMutex
	services   map[string]DataService
	defaultSvc DataService
}

func NewRegistry() *DataServiceRegistry {
	return &DataServiceRegistry{services: make(map[string]DataService)}
}

// NewRegistryFromConfig registers the live and mock sources and makes
// cfg.Source the default.
func NewRegistryFromConfig(cfg config.DataConfig, logger *zap.Logger) (*DataServiceRegistry, error) {
	live, err := NewLiveDataService(cfg, logger)
	if err != nil {
		return nil, errors.Wrap(err, "live data service")
	}

	r := NewRegistry()
	r.Register(SourceLive, live)
	r.Register(SourceMock, NewMockDataService())

	source := cfg.Source
	if source == "" {
		source = SourceLive
	}
	if err := r.SetDefault(source); err != nil {
		return nil, err
	}
	logger.Info("Data source selected", zap.String("source", source))
	return r, nil
}

// Register adds a new data source
func (r *DataServiceRegistry) Register(name string, svc DataService) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[name] = svc
	// First registered becomes default if not set
	if r.defaultSvc == nil {
		r.defaultSvc = svc
	}
}

// SetDefault sets the default data source
func (r *DataServiceRegistry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[name]
	if !ok {
		return errors.Errorf("data service not found: %s", name)
	}
	r.defaultSvc = svc
	return nil
}

// GetDefault returns the default data service
func (r *DataServiceRegistry) GetDefault() DataService {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultSvc
}

func (r *DataServiceRegistry) Get(name string) (DataService, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	return svc, ok
}

// Names lists the registered sources in sorted order.
func (r *DataServiceRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
