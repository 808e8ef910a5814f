package factory

import (
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/fsutil"
	"DDoSpectra/internal/model"
	"fmt"

	"go.uber.org/zap"
)

// Pipeline stages that own a writer set.
const (
	StageSeries   = "series"
	StageFeatures = "features"
)

// WriterFactory builds one writer from its definition. File writers stage their output
// in files; a nil files writes each file directly.
type WriterFactory func(cfg *config.Config, def config.WriterDef, files *fsutil.Txn, logger *zap.Logger) (model.Writer, error)

// registry maps stage -> writer type -> factory.
var registry = map[string]map[string]WriterFactory{
	StageSeries:   {},
	StageFeatures: {},
}

// RegisterWriter registers a writer type for a stage. It is called from init functions.
func RegisterWriter(stage, kind string, factory WriterFactory) {
	kinds, ok := registry[stage]
	if !ok {
		panic(fmt.Sprintf("unknown stage '%s'", stage))
	}
	if _, exists := kinds[kind]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered for stage '%s'", kind, stage))
	}
	kinds[kind] = factory
}

// Registered reports whether a writer type is registered for the stage.
func Registered(stage, kind string) bool {
	_, ok := registry[stage][kind]
	return ok
}

// Create builds the enabled writers of a stage. Writers already built are closed when
// a later one fails.
func Create(stage string, cfg *config.Config, files *fsutil.Txn, logger *zap.Logger) ([]model.Writer, error) {
	var defs []config.WriterDef
	switch stage {
	case StageSeries:
		defs = cfg.Aggregator.Writers
	case StageFeatures:
		defs = cfg.Analyzer.Writers
	default:
		return nil, fmt.Errorf("unknown stage '%s'", stage)
	}

	var writers []model.Writer
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		factory, ok := registry[stage][def.Type]
		if !ok {
			closeAll(writers)
			return nil, &model.ConfigurationError{Param: stage + ".writers", Reason: fmt.Sprintf("unknown writer type '%s'", def.Type)}
		}
		w, err := factory(cfg, def, files, logger)
		if err != nil {
			closeAll(writers)
			return nil, fmt.Errorf("error creating %s writer '%s': %w", stage, def.Type, err)
		}
		logger.Debug("Created writer", zap.String("stage", stage), zap.String("type", def.Type))
		writers = append(writers, w)
	}
	return writers, nil
}

func closeAll(writers []model.Writer) {
	for _, w := range writers {
		w.Close()
	}
}
